package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SourceFactory opens connections to external dataset sources. Injected into
// the importer so tests can substitute a mock source.
type SourceFactory interface {
	// Open connects to the source selected by the credential. dataset is the
	// source-side schema the role's tables live in.
	Open(ctx context.Context, cred *Credential, dataset string) (Source, error)
}

type sourceFactory struct {
	logger *zap.Logger
}

// NewSourceFactory creates the default driver-dispatching factory.
func NewSourceFactory(logger *zap.Logger) SourceFactory {
	return &sourceFactory{logger: logger}
}

var _ SourceFactory = (*sourceFactory)(nil)

func (f *sourceFactory) Open(ctx context.Context, cred *Credential, dataset string) (Source, error) {
	switch cred.Driver {
	case "postgres":
		return NewPostgresSource(ctx, cred.DSN, dataset, f.logger)
	case "mssql":
		return NewMSSQLSource(cred.DSN, dataset, f.logger)
	default:
		return nil, fmt.Errorf("unsupported source driver %q", cred.Driver)
	}
}
