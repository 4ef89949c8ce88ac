package adminapi

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/webserver"
)

// SystemStatus represents database server information and table sizes
type SystemStatus struct {
	DatabaseType    string          `json:"database_type"`
	DatabaseVersion string          `json:"database_version"`
	DatabaseSize    string          `json:"database_size,omitempty"`
	ServerTime      string          `json:"server_time"`
	Tables          []TableRowCount `json:"tables"`
	Host            *HostStatus     `json:"host,omitempty"`
}

// HostStatus is a snapshot of the machine running the service
type HostStatus struct {
	Hostname    string  `json:"hostname"`
	Platform    string  `json:"platform"`
	Uptime      uint64  `json:"uptime"`
	MemTotal    uint64  `json:"mem_total"`
	MemUsed     uint64  `json:"mem_used"`
	MemPercent  float64 `json:"mem_percent"`
	NumRoutines int     `json:"num_goroutines"`
}

func hostStatus() *HostStatus {
	st := &HostStatus{NumRoutines: runtime.NumGoroutine()}
	if info, err := host.Info(); err == nil {
		st.Hostname = info.Hostname
		st.Platform = info.Platform + " " + info.PlatformVersion
		st.Uptime = info.Uptime
	} else {
		zap.L().Warn("read host info failed", zap.Error(err), zap.String("namespace", "api"))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemTotal = vm.Total
		st.MemUsed = vm.Used
		st.MemPercent = vm.UsedPercent
	}
	return st
}

// TableRowCount is the row count of one table
type TableRowCount struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

type tabler interface {
	TableName() string
}

func registerSystemRoutes() {
	webserver.ApiGET("/system/status", systemStatus)
	webserver.ApiGET("/system/settings", getSettings)
	webserver.ApiPUT("/system/settings", updateSettings, webserver.RequireSuper)
	webserver.ApiGET("/system/oprlogs", listOprLogs)
}

func formatSize(sizeBytes int64) string {
	switch {
	case sizeBytes < 1024:
		return fmt.Sprintf("%d B", sizeBytes)
	case sizeBytes < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(sizeBytes)/1024)
	case sizeBytes < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(sizeBytes)/(1024*1024*1024))
	}
}

func systemStatus(c echo.Context) error {
	db := GetDB(c)
	dbType := db.Dialector.Name()

	info := SystemStatus{
		DatabaseType: dbType,
		ServerTime:   time.Now().Format("2006-01-02 15:04:05"),
	}

	switch dbType {
	case "postgres":
		var version string
		db.Raw("SELECT version()").Scan(&version)
		info.DatabaseVersion = version

		var dbSize string
		db.Raw("SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&dbSize)
		info.DatabaseSize = dbSize
	case "sqlite":
		var version string
		db.Raw("SELECT sqlite_version()").Scan(&version)
		info.DatabaseVersion = "SQLite " + version

		// page_count * page_size
		var pageCount, pageSize int64
		db.Raw("PRAGMA page_count").Scan(&pageCount)
		db.Raw("PRAGMA page_size").Scan(&pageSize)
		info.DatabaseSize = formatSize(pageCount * pageSize)
	}

	for _, model := range domain.Tables {
		t, isTabler := model.(tabler)
		if !isTabler {
			continue
		}
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count rows", err.Error())
		}
		info.Tables = append(info.Tables, TableRowCount{Name: t.TableName(), RowCount: count})
	}

	info.Host = hostStatus()
	return ok(c, info)
}

func getSettings(c echo.Context) error {
	return ok(c, GetAppContext(c).ConfigMgr().All())
}

// updateSettings accepts {"category.name": value} pairs
func updateSettings(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", nil)
	}
	if len(payload) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "No settings given", nil)
	}
	for key := range payload {
		if !strings.Contains(key, ".") {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Setting keys must be category.name", key)
		}
	}
	if err := GetAppContext(c).SaveSettings(payload); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err.Error())
	}

	audit(c, "settings.updated", fmt.Sprintf("%d settings updated", len(payload)))
	return ok(c, GetAppContext(c).ConfigMgr().All())
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.SysOprLog{})
	if name := strings.TrimSpace(c.QueryParam("opr_name")); name != "" {
		db = db.Where("opr_name = ?", name)
	}
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}

	var logs []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator logs", err.Error())
	}
	return paged(c, logs, total, page, pageSize)
}
