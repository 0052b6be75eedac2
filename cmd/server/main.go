package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TabloHub/tablo-guest-backend/api"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/backup"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/config"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/health"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/shutdown"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/startup"
	"github.com/TabloHub/tablo-guest-backend/internal/poke"
	"github.com/TabloHub/tablo-guest-backend/pkg/lifecycle"
	"github.com/TabloHub/tablo-guest-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env 仅用于本地开发，缺失时忽略
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}

	token.GenerateSecretKey()
	database.InitDB(cfg.Database)
	database.InitRedis(cfg.Database.Redis)

	// 1. 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 2. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 3. 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 4. 创建生命周期管理器并异步启动后台服务
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()

	sweeperHandle, err := gracefulMgr.NewServiceHandle("催办过期清扫器")
	if err != nil {
		panic(err)
	}
	go poke.StartExpirySweeper(sweeperHandle)

	reconcileHandle, err := gracefulMgr.NewServiceHandle("镜像对账调度器")
	if err != nil {
		panic(err)
	}
	go backup.StartReconcileScheduler(reconcileHandle)

	healthHandle, err := forcefulMgr.NewServiceHandle("Redis健康检查器")
	if err != nil {
		panic(err)
	}
	go health.StartRedisHealthCheck(healthHandle)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 5. 阻塞等待停机信号并执行优雅停机
	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)
	coordinator.ListenForSignalsAndShutdown(server)
}
