// Package workflow 将事件流、时间线与归档串联起来：每次提交建立一个 Run，
// 按传输顺序把事件折叠进该 Run 独享的时间线，在收到最终响应后归档并关闭连接。
package workflow
