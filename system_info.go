// system_info.go - Memory map and device tree report
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// devicePortRanges lists the ports claimed by the built-in devices.
var devicePortRanges = map[string]string{
	"pic":     "0020-0021 00A0-00A1",
	"cmos":    "0070-0071",
	"pit":     "0040-0043",
	"speaker": "0061",
	"console": "00E9",
}

// MachineInfoTree renders the machine's CPU, memory map and port bus.
func MachineInfoTree(m *Machine) string {
	tree := treeprint.NewWithRoot("IntuitionXT")

	cpuNode := tree.AddBranch("cpu")
	features := m.CPU.featureNames()
	if len(features) == 0 {
		cpuNode.AddNode("model: 8086")
	} else {
		cpuNode.AddNode("model: 8086 +" + strings.Join(features, " +"))
	}
	snap := m.Snapshot()
	cpuNode.AddNode(fmt.Sprintf("at: %s", formatSegOff(snap.Segs[x86SegCS], snap.IP)))
	cpuNode.AddNode(fmt.Sprintf("decoded: %d", snap.Decoded))
	cpuNode.AddNode(fmt.Sprintf("state: %s", m.State()))

	memNode := tree.AddMetaBranch(fmt.Sprintf("%dKB", m.Memory.Size()/1024), "memory")
	for _, r := range m.Memory.Regions() {
		memNode.AddMetaNode(r.Kind, fmt.Sprintf("%-6s %05X-%05X (%dKB)", r.Name, r.Start, r.End, (r.End-r.Start+1)/1024))
	}

	portNode := tree.AddMetaBranch("unmapped: "+m.Ports.Policy.String(), "ports")
	for _, h := range m.Devices() {
		ports, ok := devicePortRanges[h.Name()]
		if !ok {
			h.With(func(dev Device) {
				if l, isLua := dev.(*LuaDevice); isLua {
					var parts []string
					for _, p := range l.Ports() {
						parts = append(parts, fmt.Sprintf("%04X", p))
					}
					ports = "lua " + strings.Join(parts, " ")
				}
			})
		}
		portNode.AddMetaNode(h.Name(), ports)
	}
	return tree.String()
}
