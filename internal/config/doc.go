// Package config loads the TOML configuration of the client and the relay.
//
// Both files are decoded strictly: keys that do not map to a field are an
// error. FixupAndValidate fills defaults for omitted values and rejects
// invalid ones.
package config
