package handlers

import (
	"net/http"
	"testing"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/stretchr/testify/assert"
)

func TestBatchStatus(t *testing.T) {
	tests := []struct {
		name   string
		result certificates.BatchResult
		want   int
	}{
		{"all issued", certificates.BatchResult{Issued: 3}, http.StatusOK},
		{"issued and duplicates", certificates.BatchResult{Issued: 1, Duplicates: 2}, http.StatusOK},
		{"issued and rejected", certificates.BatchResult{Issued: 1, Rejected: 1}, http.StatusMultiStatus},
		{"all rejected", certificates.BatchResult{Rejected: 2}, http.StatusBadRequest},
		{"failed without a store error", certificates.BatchResult{
			Failed:   1,
			Outcomes: []certificates.Outcome{{Status: certificates.OutcomeFailed}},
		}, http.StatusMultiStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchStatus(tt.result))
		})
	}
}

func TestBatchMessage(t *testing.T) {
	assert.Equal(t, "Generated 1 certificate", batchMessage(certificates.BatchResult{Issued: 1}))
	assert.Equal(t, "Generated 0 certificates, 2 already issued, 1 rejected, 1 failed",
		batchMessage(certificates.BatchResult{Duplicates: 2, Rejected: 1, Failed: 1}))
}
