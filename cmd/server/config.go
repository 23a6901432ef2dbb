package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"persona-call-golang/internal/config"
	redisdb "persona-call-golang/internal/db/redis"
)

func Init(configFile string) error {
	if err := initConfig(configFile); err != nil {
		fmt.Printf("initConfig err: %+v\n", err)
		os.Exit(1)
		return err
	}

	if err := initLog(); err != nil {
		return err
	}

	if viper.GetBool("redis.enable") {
		if err := initRedis(); err != nil {
			fmt.Printf("initRedis err: %+v\n", err)
			os.Exit(1)
			return err
		}
	}

	return nil
}

func initConfig(configFile string) error {
	basePath, file := filepath.Split(configFile)

	fileName, fileExt := func(file string) (string, string) {
		if pos := strings.LastIndex(file, "."); pos != -1 {
			return file[:pos], strings.ToLower(file[pos+1:])
		}
		return file, ""
	}(file)

	viper.SetConfigName(fileName)
	viper.AddConfigPath(basePath)

	switch fileExt {
	case "json":
		viper.SetConfigType("json")
	case "yaml", "yml":
		viper.SetConfigType("yaml")
	default:
		return fmt.Errorf("unsupported config file type: %s", fileExt)
	}

	config.SetDefaults()
	return viper.ReadInConfig()
}

func initLog() error {
	if viper.GetBool("log.use_stdout") && viper.GetString("log.path") == "" {
		logrus.SetOutput(os.Stdout)
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			ForceColors:     true,
		})
	} else {
		logPath := filepath.Join(viper.GetString("log.path"), viper.GetString("log.file"))
		// Rotate daily, keep log.max_age files.
		writer, err := rotatelogs.New(
			logPath+".%Y%m%d",
			rotatelogs.WithLinkName(logPath),
			rotatelogs.WithRotationCount(uint(viper.GetInt("log.max_age"))),
			rotatelogs.WithRotationTime(time.Duration(86400)*time.Second),
		)
		if err != nil {
			fmt.Printf("init log error: %v\n", err)
			os.Exit(1)
			return err
		}

		if viper.GetBool("log.use_stdout") {
			multiWriter := io.MultiWriter(writer, os.Stdout)
			logrus.SetOutput(multiWriter)
			logrus.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05.000",
				ForceColors:     true,
			})
		} else {
			logrus.SetOutput(writer)
			logrus.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05.000",
				ForceColors:     false,
			})
		}
	}

	logrus.SetReportCaller(false)
	logLevel, _ := logrus.ParseLevel(viper.GetString("log.level"))
	logrus.SetLevel(logLevel)

	return nil
}

func initRedis() error {
	redisConfig := &redisdb.Config{
		Host:         viper.GetString("redis.host"),
		Port:         viper.GetInt("redis.port"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		PoolSize:     viper.GetInt("redis.pool_size"),
		MinIdleConns: viper.GetInt("redis.min_idle_conns"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	if redisConfig.Host == "" {
		redisConfig = redisdb.DefaultConfig()
	}
	return redisdb.Init(redisConfig)
}
