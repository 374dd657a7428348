// Package api 提供只读的 REST 接口：归档时间线、Agent 注册表、钱包面板，
// 以及 /metrics 与 /healthz。
package api
