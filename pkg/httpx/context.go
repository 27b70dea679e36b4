package httpx

import "context"

type ctxKey string

const CtxKeySubject ctxKey = "subject"

// SubjectFromContext returns the subject stored by BearerAuth.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}
