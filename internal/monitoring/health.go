package monitoring

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"lettervault/internal/storage"
)

// HealthChecker 进程级健康检查，暴露 /live 与 /ready 端点。
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}
	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储后端
	hc.health.AddReadinessCheck("storage", func() error {
		return hc.store.Health()
	})

	// 协程数量失控通常意味着导入任务泄漏
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(2000))
}

// AddReadiness 注册额外的就绪检查（如数据库连接池、Redis）。
func (hc *HealthChecker) AddReadiness(name string, check func() error) {
	hc.health.AddReadinessCheck(name, check)
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// Snapshot 返回当前各项检查的摘要。
func (hc *HealthChecker) Snapshot() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}
	results["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return results
}
