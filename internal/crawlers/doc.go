// Package crawlers 实现片段路由(#!/)单页应用的快照爬取
//
// # 概述
//
// 从入口URL开始, 渲染每个页面, 提取页面中带 #!/ 的同站链接继续爬取,
// 并把去掉脚本和隐藏元素后的标记保存为 _escaped_fragment_ 目录下的 index.html,
// 供搜索引擎以 ?_escaped_fragment_= 的方式读取。
//
// # 核心组件
//
// ## Scheduler
//
// 一次爬取会话。持有已发现集合、待处理队列和进行中计数,
// 保证同一URL只派发一次, 同时运行的流水线不超过并发上限(默认2)。
//
//	sched, err := NewScheduler(pipeline, SchedulerOptions{Concurrency: 2})
//	err = sched.Start(ctx, "http://example.com/")
//	err = NewTerminationMonitor(sched, time.Second).Wait(ctx)
//
// ## DiscoveryFilter
//
// 接受链接的条件: 含 #!/、以入口URL开头、不匹配任何忽略规则、此前未发现过。
//
// ## PagePipeline
//
// 渲染 -> 等待页面稳定 -> 发布链接 -> 清理标记 -> MapToPath -> 写入。
// 任何一步失败只影响当前页面。
//
// ## Renderer
//
//   - BrowserRenderer: go-rod 无头浏览器, 执行页面脚本, 标签页来自 PagePool
//   - StaticRenderer: colly 抓取, 不执行脚本
//
// ## ResourceMonitor
//
// 按可用内存和CPU核数收紧并发上限。
//
// # 输出布局
//
//	http://example.com/#!/some/cool/page  ->  <output>/_escaped_fragment_/some/cool/page/index.html
//	http://example.com/x#!/               ->  <output>/_escaped_fragment_/x/index.html
//
// 重复爬取同一站点会覆盖已有文件。
package crawlers
