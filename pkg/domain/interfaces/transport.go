package interfaces

import (
	"context"
	"encoding/json"

	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// Transport performs the HTTP calls of the engine. Implementations return
// model.ErrUnauthorized on 401 and model.ErrTransport on other failures.
type Transport interface {
	Get(ctx context.Context, url string, params model.Params) (json.RawMessage, error)
	Post(ctx context.Context, url string, data model.Params) (json.RawMessage, error)
}
