// Package config holds corslight-cli profiles.
//
// A profile names a server and a storage document so that repeated
// commands need no flags. Profiles live in ~/.corslight/cli.yaml:
//
//	current: dev
//	default_output: table
//	profiles:
//	  dev:
//	    server: 127.0.0.1:5380
//	    target: https://store.example.com/frame.html
//	    origin: http://localhost
package config
