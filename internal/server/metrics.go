package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	casesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casetrack_cases_created_total",
		Help: "Number of cases created.",
	})
	casesUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casetrack_cases_updated_total",
		Help: "Number of case updates applied.",
	})
	casesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casetrack_cases_deleted_total",
		Help: "Number of cases deleted.",
	})
	blobUploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casetrack_blob_upload_bytes_total",
		Help: "Bytes written to the blob store by uploads.",
	})
	loginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrack_login_attempts_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrack_http_requests_total",
		Help: "HTTP requests by method and status class.",
	}, []string{"method", "status"})
)
