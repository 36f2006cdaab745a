package handler

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ParseOrGenerateTraceID validates a caller-supplied trace id, falling
// back to a fresh UUIDv7 when it is absent or malformed.
func ParseOrGenerateTraceID(traceIDParam string) string {
	log := logrus.WithField("prefix", "ParseOrGenerateTraceID")
	if traceIDParam != "" {
		uuids, err := uuid.Parse(traceIDParam)
		if err == nil {
			return uuids.String()
		}
		log.WithFields(logrus.Fields{
			"error":            err,
			"invalid_trace_id": traceIDParam,
		}).Warn("generating a new trace_id")
	}
	uuids, err := uuid.NewV7()
	if err != nil {
		log.Error(err)
		return "unknown"
	}
	return uuids.String()
}
