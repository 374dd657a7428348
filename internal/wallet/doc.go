// Package wallet 负责提交者身份：校验并规范化 EVM 地址，并为钱包面板汇总链上信息。
package wallet
