package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsReader     int64
	errorsHub        int64
	warnsReader      int64
	warnsHub         int64
	fundingReads     int64
	tradeReads       int64
	liquidationReads int64
	broadcasts       int64
	clientsConnected int64
	channels         sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsReader, 1)
	} else if strings.Contains(component, "hub") || strings.Contains(component, "server") {
		atomic.AddInt64(&warnsHub, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsReader, 1)
	} else if strings.Contains(component, "hub") || strings.Contains(component, "server") {
		atomic.AddInt64(&errorsHub, 1)
	}
}

func IncrementFundingRead(size int) {
	atomic.AddInt64(&fundingReads, 1)
	recordChannel("funding_ws", size)
}

func IncrementTradeRead(size int) {
	atomic.AddInt64(&tradeReads, 1)
	recordChannel("trade_ws", size)
}

func IncrementLiquidationRead(size int) {
	atomic.AddInt64(&liquidationReads, 1)
	recordChannel("liquidation_ws", size)
}

func IncrementBroadcast(size int) {
	atomic.AddInt64(&broadcasts, 1)
	recordChannel("hub_broadcast", size)
}

// SetClientCount records the current number of connected dashboard clients.
func SetClientCount(n int) {
	atomic.StoreInt64(&clientsConnected, int64(n))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and feed statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_reader":     atomic.LoadInt64(&errorsReader),
		"errors_hub":        atomic.LoadInt64(&errorsHub),
		"warns_reader":      atomic.LoadInt64(&warnsReader),
		"warns_hub":         atomic.LoadInt64(&warnsHub),
		"funding_reads":     atomic.LoadInt64(&fundingReads),
		"trade_reads":       atomic.LoadInt64(&tradeReads),
		"liquidation_reads": atomic.LoadInt64(&liquidationReads),
		"broadcasts":        atomic.LoadInt64(&broadcasts),
		"clients_connected": atomic.LoadInt64(&clientsConnected),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
		"channels":          channelData,
		"net_bytes_sent":    int64(bytesSent),
		"net_bytes_recv":    int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsHub"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_hub"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsHub"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_hub"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FundingReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["funding_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("TradeReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["trade_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("LiquidationReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["liquidation_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Broadcasts"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["broadcasts"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ClientsConnected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["clients_connected"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
