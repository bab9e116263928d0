// Package commands defines the synctrust CLI.
//
// Commands
//
//   - init             Create the local identity
//   - fingerprint      Print the identity fingerprint
//   - create           Open a sync session and admit joiners until interrupted
//   - join <session>   Join a sync session and stay in it until interrupted
//   - trusted list     List the keys trusted so far
//   - trusted revoke   Forget a trusted key
//
// # Implementation
//
// The root command loads the client configuration and builds the stores and
// the relay client before any subcommand runs. Commands that talk to the
// relay log in with the decrypted identity and ask on the terminal whenever
// safety words need to be compared.
package commands
