package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmDeposit(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCash int64
		wantErr  error
	}{
		{
			name: "captured",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/deposits/pay_abc123", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"external_ref":"pay_abc123","status":"captured","cash_amount":500}`))
			},
			wantCash: 500,
		},
		{
			name: "pending",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"external_ref":"pay_abc123","status":"pending"}`))
			},
			wantErr: ErrNotCaptured,
		},
		{
			name: "unknown reference",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: ErrNotCaptured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := NewGateway(srv.URL)
			cash, err := g.ConfirmDeposit(context.Background(), "pay_abc123")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCash, cash)
		})
	}
}

func TestConfirmDeposit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	_, err := g.ConfirmDeposit(context.Background(), "pay_abc123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotCaptured)
}

func TestConfirmDeposit_Unconfigured(t *testing.T) {
	g := NewGateway("")
	_, err := g.ConfirmDeposit(context.Background(), "pay_abc123")
	require.Error(t, err)
}
