// Package rpc layers blocking request/response calls over an asynchronous
// MessagingService.
//
// A Client sends requests on a request topic and waits for the reply carrying
// the same correlation id on a reply topic. A Server answers requests with a
// Handler. Requests and replies are codebook messages wrapped in an envelope:
//
//	[16]byte correlation id (uuid)
//	bool     isError
//	string   error message          (isError)
//	message  codebook id + payload  (!isError)
package rpc
