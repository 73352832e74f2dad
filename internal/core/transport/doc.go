// Package transport 选择本进程的分发传输后端
//
// 进程初始化时按配置选定一次，Reactor 只面向 pkgif.Transport 编程：
//
//	后端        | 远端扇出 | 锁替换/命名/分发回调
//	------------|----------|---------------------
//	privileged  | 仲裁者   | 支持
//	socket      | 数据报   | 支持
//	local       | 无       | 不支持
//
// # 子包
//
//   - privileged: 共享段中的仲裁者维护 Reactor 登记表与监听表，
//     按 (Reactor, 通道) 向每个监听进程投递一份消息
//   - socket: 每个进程一个 Unix 数据报套接字，信封用 protowire 编码，
//     发送方按 World 级订阅登记表逐个投递
//   - local: 仅本进程，self 为 false 的分发直接丢弃
//
// # 使用示例
//
//	t, err := transport.New(w, cfg.Transport)
//	if err != nil {
//	    return err
//	}
//	if err := t.Start(proc); err != nil {
//	    return err
//	}
//	defer t.Close()
package transport
