package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/AlexZinkM/xdaghub/internal/chunk"
	"github.com/AlexZinkM/xdaghub/internal/common"

	"github.com/spf13/cobra"
)

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Encode and decode inscription fragments",
	}
	cmd.AddCommand(chunkEncodeCmd(), chunkDecodeCmd())
	return cmd
}

func chunkEncodeCmd() *cobra.Command {
	var (
		tag        string
		awardRatio float64
	)
	cmd := &cobra.Command{
		Use:   "encode <payload>",
		Short: "Split a payload into fragments, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("award-ratio") {
				awardRatio = cfg.InscriptionAwardRatio
			}
			enc, err := chunk.Encode(tag, args[0], awardRatio)
			if err != nil {
				return err
			}
			for _, c := range enc.Chunks {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "fragments: %d  per transfer: %s XDAG  award: %s XDAG  total: %s XDAG\n",
				len(enc.Chunks), common.NanoToXDAG(enc.SingleTxCost), common.NanoToXDAG(enc.Award),
				common.NanoToXDAG(enc.TotalCost))
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "!!", "2-character group tag")
	cmd.Flags().Float64Var(&awardRatio, "award-ratio", 0, "award ratio (default INSCRIPTION_AWARD_RATIO)")
	return cmd
}

func chunkDecodeCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "decode [fragment...]",
		Short: "Reassemble fragments given as arguments or on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			fragments := args
			if len(fragments) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
						fragments = append(fragments, line)
					}
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			payload, ok := chunk.Decode(tag, fragments)
			if !ok {
				return fmt.Errorf("fragments do not reassemble into a %q group", tag)
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "!!", "2-character group tag")
	return cmd
}
