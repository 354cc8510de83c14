package a2a

import (
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/logging"
)

// ProtocolVersion is the A2A protocol version advertised in agent cards.
const ProtocolVersion = "0.3.0"

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// URL is the public JSON-RPC endpoint advertised in the agent card. When
	// empty, clients use the URL they resolved the card from.
	URL     string
	Version string
	Logger  logging.Logger
}

// NewCard builds the agent card for ag.
func NewCard(ag agent.Agent, url, version string) *a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(ag.Skills()))
	for _, s := range ag.Skills() {
		skills = append(skills, a2a.AgentSkill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        s.Tags,
			Examples:    s.Examples,
		})
	}

	if version == "" {
		version = "0.1.0"
	}

	return &a2a.AgentCard{
		Name:               ag.Name(),
		Description:        ag.Description(),
		URL:                url,
		Version:            version,
		ProtocolVersion:    ProtocolVersion,
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills:             skills,
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}
}

// NewHandler serves ag over JSON-RPC at "/" and its card at the well-known
// agent card path.
func NewHandler(ag agent.Agent, optFns ...func(o *HandlerOptions)) http.Handler {
	opts := HandlerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	executor := NewExecutor(ag, func(o *ExecutorOptions) {
		o.Logger = opts.Logger
	})

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(NewCard(ag, opts.URL, opts.Version)))
	r.Handle("/", a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(executor)))

	return r
}
