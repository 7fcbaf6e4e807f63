// Package api assembles the HTTP routes of the signer.
package api

import (
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/api/docs"
	"github.com/AlexZinkM/xdaghub/internal/app"
	"github.com/AlexZinkM/xdaghub/internal/handler"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers. Everything except the dApp
// endpoint and the API docs requires uiToken in the X-Ui-Token header.
//
// @title                       xdaghub signer API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  UIToken
// @in                          header
// @name                        X-Ui-Token
func SetupRouter(w *app.Wire, uiToken string) http.Handler {
	docs.SwaggerInfo.Host = w.Config.Addr()

	routerHandler := handler.NewRouterHandler(w.Router)
	approvalHandler := handler.NewApprovalHandler(w.Surfaces, w.Approvals)
	walletHandler := handler.NewWalletHandler(w.Wallet, w.Inscriptions)
	eventsHandler := handler.NewEventsHandler(w.Keyring, w.Network)

	mux := http.NewServeMux()
	ui := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, handler.RequireUIToken(uiToken, handler.RequireJSON(h)))
	}

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Message router
	ui("/router/ui", routerHandler.UI)
	mux.HandleFunc("/router/dapp", handler.RequireJSON(routerHandler.Dapp))

	// Approvals
	ui("/surfaces", approvalHandler.Surfaces)
	ui("/surfaces/{id}/close", approvalHandler.CloseSurface)
	ui("/approvals/transactions/{id}", approvalHandler.DecideTransaction)
	ui("/approvals/inscriptions/{id}", approvalHandler.DecideInscription)

	// Wallet
	ui("/wallet/balance", walletHandler.GetBalance)
	ui("/wallet/qr", walletHandler.QR)
	ui("/wallet/transfer", walletHandler.Transfer)
	ui("/wallet/inscribe", walletHandler.Inscribe)
	ui("/wallet/transactions", walletHandler.TransactionHistory)
	ui("/wallet/inscriptions", walletHandler.RestoreInscriptions)

	ui("/events", eventsHandler.Stream)

	return mux
}
