package config

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	// EnvDataDir 覆盖数据目录的环境变量
	EnvDataDir = "RAGCHAT_DATA_DIR"
	// DefaultDataDirName 用户主目录下的默认目录名
	DefaultDataDirName = ".ragchat"

	dbFileName    = "ragchat.db"
	uploadDirName = "uploads"
)

var (
	dataDirOnce sync.Once
	dataDirPath string
)

// GetDataDir 返回 SQLite 数据库和上传暂存文件共用的根目录
// 进程内只解析一次，RAGCHAT_DATA_DIR 优先，其次 ~/.ragchat
func GetDataDir() string {
	dataDirOnce.Do(func() {
		dataDirPath = resolveDataDir()
	})
	return dataDirPath
}

func resolveDataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 容器里可能没有 HOME，落到工作目录
		return DefaultDataDirName
	}
	return filepath.Join(homeDir, DefaultDataDirName)
}

// DefaultDBPath 未配置 database.path 时的会话与文档库位置
func DefaultDBPath() string {
	return filepath.Join(GetDataDir(), dbFileName)
}

// DefaultUploadDir 未配置 UPLOAD_DIR 时上传文件的暂存目录
func DefaultUploadDir() string {
	return filepath.Join(GetDataDir(), uploadDirName)
}

// ResetDataDir 清除缓存的数据目录，测试切换环境变量时使用
func ResetDataDir() {
	dataDirOnce = sync.Once{}
	dataDirPath = ""
}
