package lifecycle

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tokens.yaml
var tokensYAML []byte

// Token 代币元数据
type Token struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
	Stable   bool   `yaml:"stable"`
}

// TokenRegistry 代币注册表
type TokenRegistry struct {
	byAddress map[string]Token
	bySymbol  map[string]Token
}

// ParseTokenRegistry 解析 yaml 注册表
func ParseTokenRegistry(data []byte) (*TokenRegistry, error) {
	var doc struct {
		Tokens []Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse token registry: %w", err)
	}
	r := &TokenRegistry{
		byAddress: make(map[string]Token, len(doc.Tokens)),
		bySymbol:  make(map[string]Token, len(doc.Tokens)),
	}
	for _, t := range doc.Tokens {
		if t.Symbol == "" {
			return nil, fmt.Errorf("token without symbol: %+v", t)
		}
		if t.Address != "" {
			r.byAddress[strings.ToLower(t.Address)] = t
		}
		r.bySymbol[strings.ToUpper(t.Symbol)] = t
	}
	return r, nil
}

var (
	defaultTokens     *TokenRegistry
	defaultTokensOnce sync.Once
)

// Tokens 内置注册表
func Tokens() *TokenRegistry {
	defaultTokensOnce.Do(func() {
		r, err := ParseTokenRegistry(tokensYAML)
		if err != nil {
			panic(err)
		}
		defaultTokens = r
	})
	return defaultTokens
}

// Lookup 先按地址，再按符号查找
func (r *TokenRegistry) Lookup(address, symbol string) (Token, bool) {
	if t, ok := r.byAddress[strings.ToLower(address)]; ok && address != "" {
		return t, true
	}
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// IsStable 稳定币
func (r *TokenRegistry) IsStable(symbol string) bool {
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return ok && t.Stable
}

// NaturalValue 按精度换算后的数额，未知代币返回 0
func (r *TokenRegistry) NaturalValue(address, symbol string, raw float64) float64 {
	t, ok := r.Lookup(address, symbol)
	if !ok {
		return 0
	}
	return raw / math.Pow10(t.Decimals)
}
