// Package commands defines the xdaghub CLI.
//
// Commands
//
//   - serve          Run the signer HTTP API
//   - vault create   Create the encrypted vault and print the first address
//   - vault reseal   Re-encrypt the vault under a new password and scrypt cost
//   - chunk encode   Split a payload into inscription fragments
//   - chunk decode   Reassemble fragments into the payload
//
// Configuration comes from the environment, see internal/config.
package commands
