// Package web3 提供钱包面板所需的链访问能力：EVM 客户端、YAML 链定义以及按名称
// 管理多条链的注册表。
package web3
