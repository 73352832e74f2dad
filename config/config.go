// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持预设配置（master/slave/test）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Transport.Backend = config.BackendSocket
//	cfg.Shutdown.Info = true
//
//	// 应用预设到现有配置
//	config.ApplyPreset(cfg, "test")
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

// Config 是 Fusion 的完整配置结构
//
// 配置按照功能模块组织：
//   - World: 共享内存区、进程身份
//   - Reactor: 消息大小、直接分发
//   - Pool: 对象池配额与诊断
//   - Transport: 分发传输后端
//   - Shutdown: 排空等待与强制终止阶梯
//   - Storage: 对象属性存储
//   - Metrics: 指标导出
//   - Layer: 显示层
type Config struct {
	// World 共享 World 配置
	World WorldConfig `json:"world"`

	// Reactor 配置
	Reactor ReactorConfig `json:"reactor"`

	// Pool 对象池配置
	Pool PoolConfig `json:"pool"`

	// Transport 分发传输配置
	Transport TransportConfig `json:"transport"`

	// Shutdown 关闭流程配置
	Shutdown ShutdownConfig `json:"shutdown"`

	// Storage 属性存储配置
	Storage StorageConfig `json:"storage"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Layer 显示层配置
	Layer LayerConfig `json:"layer"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		World:     DefaultWorldConfig(),
		Reactor:   DefaultReactorConfig(),
		Pool:      DefaultPoolConfig(),
		Transport: DefaultTransportConfig(),
		Shutdown:  DefaultShutdownConfig(),
		Storage:   DefaultStorageConfig(),
		Metrics:   DefaultMetricsConfig(),
		Layer:     DefaultLayerConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return err
	}
	if err := c.Reactor.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Layer.Validate(); err != nil {
		return err
	}
	return c.crossCheck()
}
