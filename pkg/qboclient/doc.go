// Package qboclient is the entry point for QuickBooks Online clients.
//
// New builds a client for one company from a qbo.Config:
//
//	cli, err := qboclient.New(ctx, &qbo.Config{
//	  RealmID:    "123145",
//	  AppKey:     os.Getenv("QBO_APP_KEY"),
//	  AppSecret:  os.Getenv("QBO_APP_SECRET"),
//	  TokenStore: store,
//	})
//
//	customer, err := cli.Entity(qbo.EntityCustomer).Get(ctx, "58")
//
// NewAuthFlow runs the authorization-code flow that produces the first
// token, and LoadConfig reads configuration from YAML, .env files and
// QBO_* environment variables.
package qboclient
