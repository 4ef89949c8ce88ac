package app

import (
	"context"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const defaultOprLogKeepDays = 365

type housekeeping struct {
	OprLogKeepDays int `mapstructure:"OprLogKeepDays"`
}

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err = a.sched.AddFunc("@daily", a.SchedClearExpireData)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@weekly", a.SchedQuoteSummaryTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedClearExpireData removes operator logs past the retention window
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	var hk housekeeping
	if err := a.ConfigMgr().Decode("system", &hk); err != nil {
		zap.S().Warnf("decode system settings: %s", err.Error())
	}
	days := hk.OprLogKeepDays
	if days <= 0 {
		days = defaultOprLogKeepDays
	}

	res := a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*time.Duration(days))).Delete(&domain.SysOprLog{})
	if res.Error != nil {
		zap.L().Error("clear operator logs failed", zap.Error(res.Error), zap.String("namespace", "app"))
		return
	}
	zap.L().Info("cleared operator logs",
		zap.Int64("rows", res.RowsAffected),
		zap.Int("keep_days", days),
		zap.String("namespace", "app"))
}

// SchedQuoteSummaryTask logs the quote totals of the past week
func (a *Application) SchedQuoteSummaryTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	from := time.Now().AddDate(0, 0, -7)
	sum, err := a.quotes.Summary(context.Background(), quoting.ListFilter{From: &from})
	if err != nil {
		zap.L().Error("weekly quote summary failed", zap.Error(err), zap.String("namespace", "app"))
		return
	}
	zap.L().Info("weekly quote summary",
		zap.Int("count", sum.Count),
		zap.Float64("total", sum.Total),
		zap.Float64("mean", sum.Mean),
		zap.Float64("median", sum.Median),
		zap.Float64("max", sum.Max),
		zap.String("namespace", "app"))
}
