package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
)

// ErrUnsupportedNetwork 未配置的网络
var ErrUnsupportedNetwork = errors.New("unsupported network")

// Backend 链节点能力，ethclient.Client 满足该接口
type Backend interface {
	ethereum.ContractCaller
	ethereum.LogFilterer
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type network struct {
	backend  Backend
	registry common.Address
	start    uint64
	closer   func()
}

// Manager 多网络客户端管理器
type Manager struct {
	mu       sync.RWMutex
	networks map[string]*network
}

// NewManager 按配置连接所有网络，未配置 rpc_url 的网络跳过
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	m := &Manager{networks: make(map[string]*network)}

	for name, nc := range cfg.Networks {
		if nc.RpcUrl == "" {
			logger.Info("Skipping network %s without rpc_url", name)
			continue
		}
		logger.Info("Connecting to %s (RPC: %s)", name, nc.RpcUrl)
		client, err := ethclient.Dial(nc.RpcUrl)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
		}
		if _, err := client.BlockNumber(context.TODO()); err != nil {
			client.Close()
			m.Close()
			return nil, fmt.Errorf("client connection test failed (%s): %w", name, err)
		}
		m.networks[name] = &network{
			backend:  client,
			registry: common.HexToAddress(nc.Registry),
			start:    nc.StartBlock,
			closer:   client.Close,
		}
	}

	logger.Info("Initialized %d networks", len(m.networks))
	return m, nil
}

// Register 注册一个网络后端，测试中使用
func (m *Manager) Register(name string, backend Backend, registry common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.networks == nil {
		m.networks = make(map[string]*network)
	}
	m.networks[name] = &network{backend: backend, registry: registry}
}

func (m *Manager) get(name string) (*network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, name)
	}
	return n, nil
}

// Backend 获取网络后端
func (m *Manager) Backend(name string) (Backend, error) {
	n, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return n.backend, nil
}

// Registry 获取网络上的 StandardBounties 合约
func (m *Manager) Registry(name string) (RegistryCaller, error) {
	n, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return NewRegistry(n.backend, n.registry), nil
}

// RegistryAddress 合约地址
func (m *Manager) RegistryAddress(name string) (common.Address, error) {
	n, err := m.get(name)
	if err != nil {
		return common.Address{}, err
	}
	return n.registry, nil
}

// StartBlock 监听起始区块
func (m *Manager) StartBlock(name string) uint64 {
	n, err := m.get(name)
	if err != nil {
		return 0
	}
	return n.start
}

// Networks 已连接的网络名
func (m *Manager) Networks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.networks))
	for name := range m.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有连接
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.networks {
		if n.closer != nil {
			n.closer()
		}
	}
}
