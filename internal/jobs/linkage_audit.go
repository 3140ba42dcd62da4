package jobs

import (
	"context"
	"time"

	"github.com/emrgen/identity/internal/metrics"
	"github.com/emrgen/identity/internal/store"
	"github.com/sirupsen/logrus"
)

const auditTimeout = time.Minute

// LinkageAudit reports contacts whose linkage breaks the one-hop cluster shape.
type LinkageAudit struct {
	store    store.Store
	schedule string
}

func NewLinkageAudit(store store.Store, schedule string) *LinkageAudit {
	return &LinkageAudit{
		store:    store,
		schedule: schedule,
	}
}

func (a *LinkageAudit) ID() string {
	return "linkage_audit"
}

func (a *LinkageAudit) Schedule() string {
	return a.schedule
}

func (a *LinkageAudit) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if _, err := a.Audit(ctx); err != nil {
		logrus.Errorf("linkage audit failed: %v", err)
	}
}

// Audit lists every broken row once and returns how many were found.
func (a *LinkageAudit) Audit(ctx context.Context) (int, error) {
	violations, err := a.store.ListLinkageViolations(ctx)
	if err != nil {
		return 0, err
	}

	for _, c := range violations {
		fields := logrus.Fields{"contact": c.ID, "precedence": c.LinkPrecedence}
		if c.LinkedID != nil {
			fields["linkedId"] = *c.LinkedID
		}
		logrus.WithFields(fields).Warn("contact linkage violation")
	}

	metrics.LinkageViolations.Set(float64(len(violations)))
	logrus.Infof("linkage audit found %d violations", len(violations))

	return len(violations), nil
}
