package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	rotates "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/api"
	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/haolipeng/route_traffic_analyzer/pkg/dashboard"
	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/pipeline"
	"github.com/haolipeng/route_traffic_analyzer/pkg/processor"
	"github.com/haolipeng/route_traffic_analyzer/pkg/ruleEngine"
	"github.com/haolipeng/route_traffic_analyzer/pkg/sink"
	"github.com/haolipeng/route_traffic_analyzer/pkg/source"
	"github.com/haolipeng/route_traffic_analyzer/pkg/topology"
)

func InitLogger(cfg *config.Config) error {
	// 使用配置文件中的设置
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	logrus.SetFormatter(formatter)

	var level logrus.Level
	var err error
	var logWriter *rotates.RotateLogs

	switch cfg.Log.Level {
	case "DEBUG":
		level = logrus.DebugLevel
	case "WARN":
		level = logrus.WarnLevel
	case "INFO":
		level = logrus.InfoLevel
	case "ERROR":
		level = logrus.ErrorLevel
	case "FATAL":
		level = logrus.FatalLevel
	case "PANIC":
		level = logrus.PanicLevel
	default:
		level = logrus.WarnLevel //默认
	}

	//1、判断文件路径和文件是否存在，不存在则创建
	if _, err := os.Stat(cfg.Log.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
			return err
		}
	}
	logFileName := path.Join(cfg.Log.Dir, cfg.Log.Filename)

	//2、判断是否设置日志级别，默认为WARN级别
	if level < logrus.PanicLevel || level > logrus.TraceLevel {
		logrus.Errorln("init log failed,level not supported!")
		logrus.SetLevel(logrus.WarnLevel)
	} else {
		logrus.SetLevel(level)
	}

	//3、日志切割功能，按时间来切割
	var osVersion string
	osVersion = runtime.GOOS
	if osVersion == "windows" {
		logWriter, err = rotates.New(
			logFileName+".%Y%m%d%H%M",
			rotates.WithMaxAge(24*time.Hour),    //文件最大保存时间
			rotates.WithRotationTime(time.Hour), //文件切割间隔
		)
	} else if osVersion == "linux" {
		logWriter, err = rotates.New(
			logFileName+".%Y%m%d%H%M",
			rotates.WithLinkName(logFileName),   //文件软链接
			rotates.WithMaxAge(24*time.Hour),    //文件最大保存时间
			rotates.WithRotationTime(time.Hour), //文件切割间隔
		)
	}

	if err != nil {
		return err
	}

	//创建 local file system hook
	//不同的日志级别写入不同的日志文件
	lfHook := lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: logWriter,
		logrus.InfoLevel:  logWriter,
		logrus.WarnLevel:  logWriter,
		logrus.ErrorLevel: logWriter,
		logrus.FatalLevel: logWriter,
		logrus.PanicLevel: logWriter,
	}, &logrus.TextFormatter{})

	logrus.AddHook(lfHook)
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	count := flag.Int("count", 0, "覆盖配置中的报文生成数量")
	seed := flag.Int64("seed", 0, "覆盖配置中的随机种子")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数优先于配置文件
	if *count > 0 {
		cfg.Simulator.Count = *count
	}
	if *seed != 0 {
		cfg.Simulator.Seed = *seed
	}

	// 初始化日志
	if err := InitLogger(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logrus.Info("Starting route traffic analyzer...")

	// 创建context用于控制生命周期
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 拓扑和流量指标由拓扑构建处理器填充,看板对外展示
	topo := topology.New()
	traffic := metrics.NewTrafficMetrics(cfg.Analysis.LatencyThresholdMs, cfg.Analysis.ThroughputThresholdMbps)
	board := dashboard.New(traffic, topo)

	// 创建pipeline
	p := pipeline.NewPipeline()

	// 设置pipeline配置
	if err := p.SetConfig(cfg); err != nil {
		logrus.Fatalf("Failed to set pipeline config: %v", err)
	}

	// 创建数据源
	var src pipeline.Source
	if cfg.Source.Type == "file" {
		fileSource, err := source.NewJSONFileSource(cfg.Source.Filename, cfg.Pipeline.BufferSize)
		if err != nil {
			logrus.Fatalf("Failed to create file source: %v", err)
		}
		src = fileSource
	} else {
		simSource, err := source.NewSimulatorSource(cfg)
		if err != nil {
			logrus.Fatalf("Failed to create simulator source: %v", err)
		}
		src = simSource
	}

	p.SetSource(src)

	// 添加协议解析处理器
	err = p.AddProcessor(processor.NewProtocolParser(cfg.Pipeline.WorkerCount))
	if err != nil {
		logrus.Errorf("Add Protocol Parser Processor Failed: %s\n", err)
		return
	}
	// 添加特征提取处理器
	err = p.AddProcessor(processor.NewBasicFeatureExtractor(cfg.Pipeline.WorkerCount))
	if err != nil {
		logrus.Errorf("Add Basic Feature Extractor Failed: %s\n", err)
		return
	}

	// 规则引擎可选,按配置决定是否启用
	if cfg.RuleEngine.Enabled {
		loader := ruleEngine.NewRuleLoader()
		if err := loader.LoadRulesFromDirectory(cfg.RuleEngine.RuleDirectory); err != nil {
			logrus.Fatalf("Failed to load rules: %v", err)
		}
		engine, err := processor.NewRuleEngine(loader.GetAllRules())
		if err != nil {
			logrus.Fatalf("Failed to create rule engine: %v", err)
		}
		if err := p.AddProcessor(engine); err != nil {
			logrus.Errorf("Add Rule Engine Failed: %s\n", err)
			return
		}
	}

	// 添加拓扑构建处理器
	err = p.AddProcessor(processor.NewTopologyBuilder(topo, traffic))
	if err != nil {
		logrus.Errorf("Add Topology Builder Failed: %s\n", err)
		return
	}

	// 设置输出
	var out pipeline.Sink
	if cfg.Output.Type == "pcap" {
		pcapSink, err := sink.NewPcapSink(cfg)
		if err != nil {
			logrus.Fatalf("Failed to create pcap sink: %v", err)
		}
		out = pcapSink
	} else {
		jsonSink, err := sink.NewJSONLinesSink(cfg.Output.Filename)
		if err != nil {
			logrus.Fatalf("Failed to create json sink: %v", err)
		}
		out = jsonSink
	}
	p.SetSink(out)

	// 启动pipeline
	if err := p.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start pipeline: %v", err)
	}

	logrus.Info("Pipeline started successfully")

	// 按配置启动HTTP API服务
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg)
		apiServer.RegisterDashboardService(api.NewDashboardService(board, p))
		go func() {
			if err := apiServer.Start(); err != nil {
				logrus.Errorf("API server stopped: %v", err)
			}
		}()
		logrus.Infof("API server listening on %s:%s", cfg.API.Host, cfg.API.Port)
	}

	// 等待处理完成或中断信号
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logrus.Infof("Received signal %v, shutting down...", sig)
	case <-done:
		logrus.Info("All packets processed")
	}

	// 优雅退出
	cancel()
	if err := p.Stop(); err != nil {
		logrus.Errorf("Error stopping pipeline: %v", err)
	}

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logrus.Errorf("Error stopping API server: %v", err)
		}
		shutdownCancel()
	}

	// 处理结束后输出分析看板
	fmt.Println(board.ToMarkdown())

	logrus.Info("Shutdown complete")
}
