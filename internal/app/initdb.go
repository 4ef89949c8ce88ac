package app

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	superUsername   = "admin"
	defaultPassword = "estmator"
)

func (a *Application) checkSuper() {
	hashedPassword, err := common.HashPassword(defaultPassword)
	if err != nil {
		zap.L().Error("failed to hash default password", zap.Error(err))
		return
	}

	var operator domain.SysOpr
	err = a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     common.NA,
			Username:  superUsername,
			Password:  hashedPassword,
			Level:     domain.OprLevelSuper,
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, domain.OprLevelSuper)
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		updates["password"] = hashedPassword
	}
	if resetLevel {
		updates["level"] = domain.OprLevelSuper
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

// splitSettingKey parses "category.name"
func splitSettingKey(key string) (string, string, bool) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (a *Application) checkSettings() {
	// Load configuration definitions from the embedded JSON file
	var schemasData ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &schemasData); err != nil {
		zap.L().Error("failed to load config schemas from JSON", zap.Error(err))
		return
	}

	for sortid, schema := range schemasData.Schemas {
		category, name, ok := splitSettingKey(schema.Key)
		if !ok {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

// DefaultGlobalVars is the rate set seeded on first start
func DefaultGlobalVars() domain.GlobalVars {
	return domain.GlobalVars{
		StreetLoad:     0.05,
		MidriseElevStd: 0.1,
		MidriseElvFrt:  0.05,
		Highrise:       0.15,
		Stairs:         0.2,
		LngPsh:         0.1,
		HourlyRate:     120,
		TravelRate:     60,
		OvertimeFactor: 1.5,
		Active:         true,
	}
}

// checkGlobalVars makes sure exactly one rate set is active
func (a *Application) checkGlobalVars() {
	var active []domain.GlobalVars
	if err := a.gormDB.Where("active = ?", true).Order("created_at DESC").Find(&active).Error; err != nil {
		zap.L().Error("failed to query global vars", zap.Error(err))
		return
	}

	switch {
	case len(active) == 0:
		gv := DefaultGlobalVars()
		gv.ID = common.UUIDint64()
		if err := a.gormDB.Create(&gv).Error; err != nil {
			zap.L().Error("failed to create default global vars", zap.Error(err))
			return
		}
		zap.L().Info("initialized default global vars", zap.Int64("id", gv.ID))
	case len(active) > 1:
		// keep the newest
		ids := make([]int64, 0, len(active)-1)
		for _, gv := range active[1:] {
			ids = append(ids, gv.ID)
		}
		a.gormDB.Model(&domain.GlobalVars{}).Where("id IN ?", ids).Update("active", false)
		zap.L().Warn("deactivated extra global vars", zap.Int64s("ids", ids))
	}
}

var defaultCatalog = []struct {
	Category string
	Products []domain.Product
}{
	{"Office", []domain.Product{
		{Name: "Desk", MinsPiece: 20, MultDollies: 1, LCart: 1},
		{Name: "Office chair", MinsPiece: 5, MCart: 1},
		{Name: "Filing cabinet", MinsPiece: 15, MultDollies: 1, MCart: 1},
		{Name: "Workstation panel", MinsPiece: 10, PCart: 1},
		{Name: "Book shelf", MinsPiece: 12, LCart: 2, SPack: 2},
	}},
	{"Household", []domain.Product{
		{Name: "Sofa", MinsPiece: 30, MultDollies: 2},
		{Name: "Bed", MinsPiece: 40, MultDollies: 1, PCart: 1},
		{Name: "Dresser", MinsPiece: 20, MultDollies: 1},
		{Name: "Moving box", MinsPiece: 2, SPack: 1},
	}},
}

// checkCatalog seeds the default categories and products into an empty catalog
func (a *Application) checkCatalog() {
	var count int64
	a.gormDB.Model(&domain.Category{}).Count(&count)
	if count > 0 {
		return
	}
	for _, group := range defaultCatalog {
		cat := domain.Category{ID: common.UUIDint64(), Name: group.Category}
		if err := a.gormDB.Create(&cat).Error; err != nil {
			zap.L().Error("failed to create default category", zap.String("name", cat.Name), zap.Error(err))
			continue
		}
		for _, p := range group.Products {
			p.ID = common.UUIDint64()
			p.CategoryID = cat.ID
			if err := a.gormDB.Create(&p).Error; err != nil {
				zap.L().Error("failed to create default product", zap.String("name", p.Name), zap.Error(err))
			}
		}
		zap.L().Info("initialized default category", zap.String("name", cat.Name), zap.Int("products", len(group.Products)))
	}
}
