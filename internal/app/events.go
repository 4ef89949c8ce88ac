package app

import (
	"fmt"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/pkg/common"
	"go.uber.org/zap"
)

// TopicOprAction carries an OprAction for operator changes outside quoting,
// such as logins and catalog edits.
const TopicOprAction = "opr.action"

type OprAction struct {
	OprName string
	OprIp   string
	Action  string
	Desc    string
}

var quoteTopics = []string{
	quoting.TopicCreated,
	quoting.TopicUpdated,
	quoting.TopicSent,
	quoting.TopicDeleted,
}

// subscribeAudit writes sys_opr_log rows for bus events
func (a *Application) subscribeAudit() {
	for _, topic := range quoteTopics {
		if err := a.bus.SubscribeAsync(topic, a.auditQuoteEvent, false); err != nil {
			zap.L().Error("subscribe audit failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	if err := a.bus.SubscribeAsync(TopicOprAction, a.auditOprAction, false); err != nil {
		zap.L().Error("subscribe audit failed", zap.String("topic", TopicOprAction), zap.Error(err))
	}
}

func (a *Application) auditQuoteEvent(ev quoting.Event) {
	desc := fmt.Sprintf("quote %d %q", ev.QuoteID, ev.Name)
	if ev.Detail != "" {
		desc += ": " + ev.Detail
	}
	a.auditOprAction(OprAction{
		OprName: ev.Actor.Name,
		OprIp:   ev.Actor.IP,
		Action:  ev.Topic,
		Desc:    desc,
	})
}

func (a *Application) auditOprAction(act OprAction) {
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   act.OprName,
		OprIp:     act.OprIp,
		OptAction: act.Action,
		OptDesc:   act.Desc,
		OptTime:   time.Now(),
	}
	if err := a.gormDB.Create(&entry).Error; err != nil {
		zap.L().Error("write operator log failed",
			zap.String("action", act.Action),
			zap.Error(err),
			zap.String("namespace", "audit"))
	}
}
