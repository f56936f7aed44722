// Package grpcclient creates gRPC client connections that relay the caller's
// OAuth2 credentials.
//
// Connections default to TLS 1.2+ using system roots to avoid accidental
// plaintext traffic. The tls block of a Config adds a custom root CA, a
// client certificate for mutual TLS or a server name override; Plaintext
// switches transport security off for meshes that already encrypt.
//
// # Quick Start
//
//	conn, err := grpcclient.NewClient(grpcclient.Config{
//	    Address: "accounts.internal:9090",
//	    TLS:     clienttls.Config{CAFile: "/path/to/ca.crt", ServerName: "accounts.internal"},
//	}, supplier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := accountspb.NewAccountsClient(conn)
//	resp, err := client.Get(r.Context(), req) // r.Context() carries the security.Context
//
// Services usually declare their downstream connections under grpc_clients
// in the configuration file and obtain them with config.Config.NewGRPCClient.
package grpcclient
