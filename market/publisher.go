package market

import "sync"

// Publisher 一个轻量事件分发器；慢订阅者只保留最新快照。
type Publisher struct {
	mu   sync.RWMutex
	subs []chan Snapshot
}

func NewPublisher() *Publisher {
	return &Publisher{
		subs: make([]chan Snapshot, 0),
	}
}

func (p *Publisher) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Unsubscribe 移除订阅并关闭 channel。
func (p *Publisher) Unsubscribe(sub <-chan Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, ch := range p.subs {
		if (<-chan Snapshot)(ch) == sub {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (p *Publisher) Publish(s Snapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
			// 丢弃积压的旧快照，换成最新的
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
