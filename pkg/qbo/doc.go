// Package qbo provides types, interfaces, and helpers for working with the
// QuickBooks Online accounting API.
//
// # Overview
//
// The qbo package defines the configuration, the entity registry, the query
// compiler, the token types and storage capability, the error taxonomy, and
// the webhook verifier. A concrete client is provided by the qboclient
// package, which wires configuration, transport, and token refresh.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/qbo-client/pkg/qbo"
//	  "github.com/fivetwenty-io/qbo-client/pkg/qboclient"
//	  "github.com/fivetwenty-io/qbo-client/pkg/tokenstore"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := qboclient.New(ctx, &qbo.Config{
//	    RealmID:    "123145",
//	    AppKey:     "key",
//	    AppSecret:  "secret",
//	    TokenStore: tokenstore.NewMemoryStore(),
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  invoices, err := cli.Entity(qbo.EntityInvoice).Find(ctx, qbo.QueryData{
//	    QueryBase: qbo.QueryBase{Limit: qbo.Int(10), FetchAll: qbo.Bool(true)},
//	    Items:     []qbo.Criterion{{Field: "DocNumber", Value: "%01", Operator: qbo.OpLike}},
//	  })
//	  if err != nil { log.Fatal(err) }
//	  _ = invoices
//	}
//
// # Queries
//
// Compile accepts nil, a raw string, a Criterion, a []Criterion, a QueryData,
// or the equivalent decoded JSON shapes:
//
//	q, _, err := qbo.Compile("Invoice", map[string]any{
//	  "items":  []any{map[string]any{"field": "DocNumber", "value": "%01", "operator": "LIKE"}},
//	  "limit":  10,
//	  "offset": 1,
//	})
//	// select * from Invoice where DocNumber LIKE '%01' startposition 1 maxresults 10
//
// Control fields (limit, offset, asc, desc, sort, fetchAll, count) may also
// be given as criteria; giving one in both places is a ValidationError.
//
// # Errors
//
// Typed errors match their sentinels with errors.Is: ConfigurationError
// (ErrConfiguration), ValidationError (ErrValidation), TransportError
// (ErrTransport), FaultError (ErrFault) and TokenError (ErrToken).
//
// # Webhooks
//
// VerifyWebhookBody checks the intuit-signature header of an inbound
// notification; ParseWebhookPayload decodes it.
package qbo
