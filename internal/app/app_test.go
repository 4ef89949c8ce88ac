package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/mailer"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSender struct{ sent int }

func (s *nopSender) Send(_ context.Context, _ *mailer.Message) error {
	s.sent++
	return nil
}

func newTestApp(t *testing.T) (*Application, *nopSender) {
	t.Helper()
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	a := NewApplication(cfg)
	sender := &nopSender{}
	a.OverrideMailSender(sender)
	a.Init(cfg)
	t.Cleanup(a.Release)
	return a, sender
}

func TestInitSeeds(t *testing.T) {
	a, _ := newTestApp(t)
	db := a.DB()

	var admin domain.SysOpr
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.Equal(t, domain.OprLevelSuper, admin.Level)
	assert.Equal(t, common.ENABLED, admin.Status)
	assert.True(t, common.CheckPassword(admin.Password, defaultPassword))

	var active int64
	require.NoError(t, db.Model(&domain.GlobalVars{}).Where("active = ?", true).Count(&active).Error)
	assert.EqualValues(t, 1, active)

	var cats, products int64
	db.Model(&domain.Category{}).Count(&cats)
	db.Model(&domain.Product{}).Count(&products)
	assert.EqualValues(t, 2, cats)
	assert.EqualValues(t, 9, products)

	assert.Equal(t, 365, a.ConfigMgr().GetInt("system", "OprLogKeepDays"))
	assert.Equal(t, "estmator", a.GetSettingsStringValue("system", "SystemTitle"))
	assert.True(t, a.GetSettingsBoolValue("quote", "SendEnabled"))

	// seeding twice changes nothing
	a.checkSuper()
	a.checkSettings()
	a.checkGlobalVars()
	a.checkCatalog()
	var opr, settings int64
	db.Model(&domain.SysOpr{}).Count(&opr)
	db.Model(&domain.SysConfig{}).Count(&settings)
	db.Model(&domain.Category{}).Count(&cats)
	assert.EqualValues(t, 1, opr)
	assert.EqualValues(t, 4, settings)
	assert.EqualValues(t, 2, cats)
}

func TestCheckGlobalVarsKeepsNewest(t *testing.T) {
	a, _ := newTestApp(t)
	db := a.DB()

	extra := DefaultGlobalVars()
	extra.ID = common.UUIDint64()
	extra.HourlyRate = 200
	extra.CreatedAt = time.Now().Add(time.Hour)
	require.NoError(t, db.Create(&extra).Error)

	a.checkGlobalVars()

	var active []domain.GlobalVars
	require.NoError(t, db.Where("active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, extra.ID, active[0].ID)
}

func TestSettings(t *testing.T) {
	a, _ := newTestApp(t)

	require.NoError(t, a.SaveSettings(map[string]interface{}{
		"system.OprLogKeepDays": 30,
		"quote.Motto":           "we move it",
		"bad-key":               "ignored",
	}))
	assert.EqualValues(t, 30, a.GetSettingsInt64Value("system", "OprLogKeepDays"))
	assert.Equal(t, "we move it", a.GetSettingsStringValue("quote", "Motto"))

	var hk housekeeping
	require.NoError(t, a.ConfigMgr().Decode("system", &hk))
	assert.Equal(t, 30, hk.OprLogKeepDays)

	// cache survives a reload from the database
	a.ConfigMgr().Reload()
	assert.Equal(t, "we move it", a.ConfigMgr().All()["quote"]["Motto"])
}

func TestClearExpireData(t *testing.T) {
	a, _ := newTestApp(t)
	db := a.DB()

	old := domain.SysOprLog{ID: common.UUIDint64(), OptAction: "old", OptTime: time.Now().AddDate(-2, 0, 0)}
	recent := domain.SysOprLog{ID: common.UUIDint64(), OptAction: "recent", OptTime: time.Now().AddDate(0, 0, -1)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	a.SchedClearExpireData()

	var logs []domain.SysOprLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "recent", logs[0].OptAction)
}

func TestQuoteEventsAreAudited(t *testing.T) {
	a, sender := newTestApp(t)
	db := a.DB()
	ctx := context.Background()

	client := domain.Client{ID: common.UUIDint64(), Name: "Jane Roe", Email: "jane@example.com"}
	require.NoError(t, db.Create(&client).Error)
	var desk domain.Product
	require.NoError(t, db.Where("name = ?", "Desk").First(&desk).Error)

	actor := quoting.Actor{ID: 1, Name: "admin", IP: "127.0.0.1"}
	pq, err := a.Quotes().Create(ctx, actor, quoting.Draft{
		ClientID: client.ID,
		Name:     "Office move",
		Items:    []quoting.DraftItem{{ProductID: desk.ID, Count: 2}},
	})
	require.NoError(t, err)
	_, link, err := a.Quotes().Send(ctx, actor, pq.Quote.ID)
	require.NoError(t, err)
	assert.Equal(t, a.QuoteMailer().Link(pq.Quote.Token), link)
	assert.Equal(t, 1, sender.sent)

	a.Bus().Publish(TopicOprAction, OprAction{OprName: "admin", Action: "login", Desc: "operator login"})
	a.Bus().WaitAsync()

	var logs []domain.SysOprLog
	require.NoError(t, db.Order("opt_action").Find(&logs).Error)
	require.Len(t, logs, 3)
	assert.Equal(t, "login", logs[0].OptAction)
	assert.Equal(t, quoting.TopicCreated, logs[1].OptAction)
	assert.Equal(t, quoting.TopicSent, logs[2].OptAction)
	assert.Equal(t, "127.0.0.1", logs[1].OprIp)
	assert.Contains(t, logs[2].OptDesc, "jane@example.com")
}
