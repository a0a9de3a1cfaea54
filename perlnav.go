package perlnav

// Version is reported by the CLI and the language server.
const Version = "0.1.0"
