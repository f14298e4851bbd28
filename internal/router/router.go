package router

import (
	"net/http"

	"github.com/taskcoin/backend/internal/auth"
	"github.com/taskcoin/backend/internal/dashboard"
	"github.com/taskcoin/backend/internal/handlers"
	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/submission"
	"github.com/taskcoin/backend/internal/topup"
	"github.com/taskcoin/backend/internal/withdrawal"
)

// Deps bundles the handlers the router mounts.
type Deps struct {
	Auth        *auth.Handler
	Tasks       *handlers.TaskHandler
	Submissions *submission.Handler
	Withdrawals *withdrawal.Handler
	TopUps      *topup.Handler
	Dashboard   *dashboard.Handler
	Validator   middleware.TokenValidator
}

// New returns an http.Handler serving the API under /api/v1. Routes
// declare the method in the pattern; authn and role checks wrap each
// protected route.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	authn := middleware.JWTAuth(d.Validator)
	buyer := middleware.RequireRole(models.RoleBuyer)
	worker := middleware.RequireRole(models.RoleWorker)
	admin := middleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("POST /api/v1/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", d.Auth.Login)

	mux.Handle("POST /api/v1/tasks", authn(buyer(http.HandlerFunc(d.Tasks.CreateTask))))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", authn(buyer(http.HandlerFunc(d.Tasks.CancelTask))))
	mux.Handle("GET /api/v1/tasks", authn(http.HandlerFunc(d.Tasks.ListOpenTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", authn(http.HandlerFunc(d.Tasks.GetTask)))

	mux.Handle("POST /api/v1/submissions", authn(worker(http.HandlerFunc(d.Submissions.Submit))))
	mux.Handle("GET /api/v1/submissions", authn(worker(http.HandlerFunc(d.Submissions.ListMine))))
	// Review is open to the owning buyer or an admin; the service decides.
	mux.Handle("POST /api/v1/submissions/{id}/approve", authn(http.HandlerFunc(d.Submissions.Approve)))
	mux.Handle("POST /api/v1/submissions/{id}/reject", authn(http.HandlerFunc(d.Submissions.Reject)))

	mux.Handle("POST /api/v1/withdrawals", authn(worker(http.HandlerFunc(d.Withdrawals.Request))))
	mux.Handle("GET /api/v1/withdrawals", authn(worker(http.HandlerFunc(d.Withdrawals.ListMine))))
	mux.Handle("GET /api/v1/withdrawals/pending", authn(admin(http.HandlerFunc(d.Withdrawals.ListPending))))
	mux.Handle("POST /api/v1/withdrawals/{id}/approve", authn(admin(http.HandlerFunc(d.Withdrawals.Approve))))

	mux.Handle("POST /api/v1/topups", authn(http.HandlerFunc(d.TopUps.InitiateDeposit)))
	mux.Handle("GET /api/v1/topups", authn(http.HandlerFunc(d.TopUps.ListMine)))
	mux.Handle("POST /api/v1/topups/credit", authn(admin(http.HandlerFunc(d.TopUps.Credit))))

	mux.Handle("GET /api/v1/account/me", authn(http.HandlerFunc(d.Dashboard.GetMe)))
	mux.Handle("GET /api/v1/coin-ledger", authn(http.HandlerFunc(d.Dashboard.ListCoinLedger)))

	return mux
}
