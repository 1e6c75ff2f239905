// Package main provides the entry point for corslight-cli.
//
// The CLI embeds a storage document served by corslight-server, the way a
// web page embeds it in a frame, and issues one request per invocation:
//
//	corslight-cli --target https://store.example.com/frame.html store prefs '{"theme":"dark"}'
//	corslight-cli -o json fetch prefs
//	corslight-cli profile save dev --use
package main
