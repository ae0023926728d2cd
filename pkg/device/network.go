package device

import (
	"sync"
	"time"
)

// NetworkConfig wires each node to the shared buffer it hears (In) and the
// one it plays into (Out). Nodes playing into the same buffer are mixed.
type NetworkConfig[BufferIDType comparable] []struct {
	In  BufferIDType
	Out BufferIDType
}

type networkNode[BufferIDType comparable] struct {
	*Network[BufferIDType]
	input    []int32
	output   []int32
	callback func([]int32, []int32)
}

// Network simulates a shared medium between several devices. Every tick each
// started node gets the mix of the previous tick's outputs on its input bus.
type Network[BufferIDType comparable] struct {
	SampleRate float64                     // paces the ticks in samples per second, 0 means no limit
	Config     NetworkConfig[BufferIDType] // the topology of the network
	LateUpdate func()                      // the post process function

	mu      sync.Mutex
	once    sync.Once
	buffers map[BufferIDType][]int32
	devices []*networkNode[BufferIDType]
	done    chan struct{}
	stopped sync.WaitGroup
}

// Stop halts the medium and returns once no callback is running.
func (n *Network[BufferIDType]) Stop() {
	n.mu.Lock()
	for _, d := range n.devices {
		d.callback = nil
	}
	n.mu.Unlock()
	close(n.done)
	n.stopped.Wait()
}

func (n *Network[BufferIDType]) getBuffer(name BufferIDType) []int32 {
	buf, ok := n.buffers[name]
	if !ok {
		buf = alloci32(BufferSize)
		n.buffers[name] = buf
	}
	return buf
}

// Build returns one Device per entry of Config, in order.
func (n *Network[BufferIDType]) Build() []Device {
	n.buffers = make(map[BufferIDType][]int32)
	n.done = make(chan struct{})
	devices := make([]Device, 0, len(n.Config))
	for _, deviceConfig := range n.Config {
		node := &networkNode[BufferIDType]{
			Network: n,
			input:   n.getBuffer(deviceConfig.In),
			output:  alloci32(BufferSize),
		}
		n.getBuffer(deviceConfig.Out)
		n.devices = append(n.devices, node)
		devices = append(devices, node)
	}
	return devices
}

func (n *Network[BufferIDType]) update() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, d := range n.devices {
		if d.callback != nil {
			d.callback(d.input, d.output)
		} else {
			cleari32(d.output)
		}
	}

	// clear the buffers
	for _, buf := range n.buffers {
		cleari32(buf)
	}

	// sum up the output of all the devices to the input buffer
	for i, deviceConfig := range n.Config {
		buf := n.buffers[deviceConfig.Out]
		sumi32(buf, n.devices[i].output, buf)
	}

	if n.LateUpdate != nil {
		n.LateUpdate()
	}
}

func (n *Network[BufferIDType]) run() {
	defer n.stopped.Done()

	if n.SampleRate == 0 {
		for {
			select {
			case <-n.done:
				return
			default:
				n.update()
			}
		}
	}

	ticker := time.NewTicker(blockPeriod(n.SampleRate))
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.update()
		}
	}
}

// Start attaches the callback. The medium starts ticking with the first node.
func (d *networkNode[BufferIDType]) Start(callback func([]int32, []int32)) {
	n := d.Network
	n.mu.Lock()
	d.callback = callback
	n.mu.Unlock()

	n.once.Do(func() {
		n.stopped.Add(1)
		go n.run()
	})
}

// Stop detaches the node; the medium keeps running for the others.
func (d *networkNode[BufferIDType]) Stop() {
	d.Network.mu.Lock()
	d.callback = nil
	d.Network.mu.Unlock()
}
