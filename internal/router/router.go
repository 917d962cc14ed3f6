package router

import (
	"log/slog"
	"net/http"

	"github.com/senyabanana/proposal-service/internal/handlers"
)

// Options - параметры промежуточных обработчиков.
type Options struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	DB             handlers.Pinger
	Logger         *slog.Logger
}

func InitRoutes(proposalHandler *handlers.ProposalHandler, projectHandler *handlers.ProjectHandler, opts Options) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/projects/new", projectHandler.CreateProject)
	api.HandleFunc("GET /api/projects/my", projectHandler.ListMyProjects)
	api.HandleFunc("GET /api/projects/{projectId}", projectHandler.GetProject)
	api.HandleFunc("PATCH /api/projects/{projectId}/edit", projectHandler.EditProject)
	api.HandleFunc("PUT /api/projects/{projectId}/status", projectHandler.UpdateProjectStatus)
	api.HandleFunc("GET /api/projects/{projectId}/consistency", projectHandler.CheckConsistency)

	api.HandleFunc("POST /api/proposals/new", proposalHandler.SubmitProposal)
	api.HandleFunc("GET /api/proposals/my", proposalHandler.ListMyProposals)
	api.HandleFunc("GET /api/proposals/{projectId}/list", proposalHandler.ListProjectProposals)
	api.HandleFunc("GET /api/proposals/{proposalId}", proposalHandler.GetProposal)
	api.HandleFunc("PATCH /api/proposals/{proposalId}/edit", proposalHandler.EditProposal)
	api.HandleFunc("PUT /api/proposals/{proposalId}/status", proposalHandler.UpdateProposalStatus)
	api.HandleFunc("POST /api/proposals/{proposalId}/accept", proposalHandler.AcceptProposal)
	api.HandleFunc("POST /api/proposals/{proposalId}/reject", proposalHandler.RejectProposal)
	api.HandleFunc("PUT /api/proposals/{proposalId}/rollback/{version}", proposalHandler.RollbackProposal)
	api.HandleFunc("POST /api/proposals/{proposalId}/attachments", proposalHandler.AttachFile)
	api.HandleFunc("DELETE /api/proposals/{proposalId}", proposalHandler.DeleteProposal)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", handlers.PingHandler(opts.DB, opts.Logger))
	mux.Handle("/api/", authenticate(opts.JWTSecret, rateLimit(newLimiters(opts.RateLimitRPS, opts.RateLimitBurst), api)))

	return mux
}
