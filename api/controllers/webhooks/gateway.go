package webhooks

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ingressolab/ingresso-backend/api/responses"
	gatewaywebhook "github.com/ingressolab/ingresso-backend/internal/webhooks/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/metrics"
)

const maxWebhookBodyBytes = 1 << 20

// GatewayWebhook receives payment events from the gateway. The provider
// authenticates with a shared token header. Replayed event ids are
// acknowledged without reprocessing.
func GatewayWebhook(cfg config.WebhookConfig, svc *gatewaywebhook.Service, guard *gatewaywebhook.IdempotencyGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := strings.TrimSpace(r.Header.Get("X-Webhook-Token"))
		// Fail closed when no token is configured.
		if cfg.AuthToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AuthToken)) != 1 {
			m.IncRejected("auth")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook token"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			m.IncRejected("read")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		var event gatewaywebhook.WebhookEvent
		event.Raw = body
		if err := json.Unmarshal(body, &event); err != nil {
			m.IncRejected("decode")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload"))
			return
		}
		if event.ID == "" {
			m.IncRejected("missing_id")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook event id required"))
			return
		}

		m.IncReceived(string(event.Event))
		logCtx := logg.WithFields(ctx, map[string]any{
			"webhook_event_id": event.ID,
			"webhook_event":    string(event.Event),
		})

		if guard != nil {
			seen, err := guard.CheckAndMark(logCtx, event.ID)
			if err != nil {
				responses.WriteError(logCtx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency check"))
				return
			}
			if seen {
				logg.Info(logCtx, "webhook.gateway.duplicate")
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			}
		}

		if err := svc.HandleEvent(logCtx, &event); err != nil {
			// Release the idempotency claim so the provider's retry can
			// reprocess the event.
			if guard != nil {
				if delErr := guard.Delete(logCtx, event.ID); delErr != nil {
					logg.Error(logCtx, "webhook.gateway.idempotency_release_failed", delErr)
				}
			}
			responses.WriteError(logCtx, logg, w, err)
			return
		}

		m.IncProcessed(string(event.Event))
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
