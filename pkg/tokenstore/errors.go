package tokenstore

import (
	"context"
	"errors"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// Static errors for err113 compliance.
var (
	ErrNilToken              = errors.New("token is nil")
	ErrRedisConfigRequired   = errors.New("redis configuration required for redis store")
	ErrBoltConfigRequired    = errors.New("bolt configuration required for bolt store")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS store")
	ErrFileConfigRequired    = errors.New("file configuration required for file store")
	ErrUnsupportedStoreType  = errors.New("unsupported token store type")
	ErrEmptyChain            = errors.New("token store chain is empty")
	ErrBucketMissing         = errors.New("token bucket missing")
)

// Deleter is implemented by stores that can forget a realm's token.
type Deleter interface {
	DeleteToken(ctx context.Context, ref qbo.RealmRef) error
}
