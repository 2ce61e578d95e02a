// Package cli provides the interactive storefront account command-line
// client.
//
// It wires configuration, the durable key-value store, the identity client,
// the session coordinator and the one-time-code flows into a REPL. A
// loopback callback server turns email links opened in a browser into
// sessions.
//
// Commands:
//   - signup / verify / resend : create an account with an emailed code
//   - reset / changepw         : recover or change the password
//   - whoami / can / profile   : inspect and edit the signed-in profile
//   - link                     : sign in from a pasted redirect URL
//   - logout / exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
