package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	flowctlpb "github.com/withobsrvr/flowctl/proto"

	"github.com/ChainSafe/canton-middleware-sub001/config"
	"github.com/ChainSafe/canton-middleware-sub001/processor"
)

// FlowctlController registers the service with the flowctl control plane and
// reports reconciliation metrics through periodic heartbeats.
type FlowctlController struct {
	cfg    config.FlowctlConfig
	logger *zap.Logger
	proc   *processor.BridgeProcessor

	conn          *grpc.ClientConn
	client        flowctlpb.ControlPlaneClient
	serviceID     string
	stopHeartbeat chan struct{}
}

// NewFlowctlController creates a controller; call Register to connect.
func NewFlowctlController(cfg config.FlowctlConfig, logger *zap.Logger, proc *processor.BridgeProcessor) *FlowctlController {
	return &FlowctlController{
		cfg:           cfg,
		logger:        logger,
		proc:          proc,
		stopHeartbeat: make(chan struct{}),
	}
}

// Register connects to the control plane and announces the service. When the
// control plane is unreachable the controller falls back to a simulated
// service ID so the heartbeat loop still runs and logs locally.
func (fc *FlowctlController) Register(healthPort int) error {
	var err error
	fc.conn, err = grpc.Dial(fc.cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to flowctl control plane: %w", err)
	}
	fc.client = flowctlpb.NewControlPlaneClient(fc.conn)

	serviceInfo := &flowctlpb.ServiceInfo{
		ServiceType: flowctlpb.ServiceType_SERVICE_TYPE_PROCESSOR,
		OutputEventTypes: []string{
			"canton.bridge.deposit",
			"canton.bridge.withdrawal",
			"canton.bridge.holding",
		},
		HealthEndpoint: fmt.Sprintf("http://localhost:%d/health", healthPort),
		MaxInflight:    100,
		Metadata: map[string]string{
			"network": fc.cfg.Network,
			"ledger":  "canton",
			"party":   fc.proc.Party(),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fc.logger.Info("registering with flowctl control plane", zap.String("endpoint", fc.cfg.Endpoint))

	ack, err := fc.client.Register(ctx, serviceInfo)
	if err != nil {
		fc.serviceID = "sim-canton-bridge-" + time.Now().Format("20060102150405")
		fc.logger.Warn("flowctl registration failed, using simulated ID",
			zap.String("service_id", fc.serviceID),
			zap.Error(err))
		go fc.heartbeatLoop()
		return nil
	}

	fc.serviceID = ack.ServiceId
	fc.logger.Info("registered with flowctl control plane", zap.String("service_id", fc.serviceID))
	if len(ack.TopicNames) > 0 {
		fc.logger.Info("assigned topics", zap.Strings("topics", ack.TopicNames))
	}

	go fc.heartbeatLoop()
	return nil
}

func (fc *FlowctlController) heartbeatLoop() {
	ticker := time.NewTicker(fc.cfg.HeartbeatIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fc.sendHeartbeat()
		case <-fc.stopHeartbeat:
			fc.logger.Info("stopping flowctl heartbeat loop")
			return
		}
	}
}

func (fc *FlowctlController) sendHeartbeat() {
	metrics := fc.proc.GetMetrics()

	heartbeat := &flowctlpb.ServiceHeartbeat{
		ServiceId: fc.serviceID,
		Timestamp: timestamppb.Now(),
		Metrics: map[string]float64{
			"runs_started":           float64(metrics.RunsStarted),
			"runs_completed":         float64(metrics.RunsCompleted),
			"runs_failed":            float64(metrics.RunsFailed),
			"events_processed":       float64(metrics.EventsProcessed),
			"deposits_correlated":    float64(metrics.DepositsCorrelated),
			"withdrawals_matched":    float64(metrics.WithdrawalsMatched),
			"holdings_observed":      float64(metrics.HoldingsObserved),
			"last_ledger_end_offset": float64(metrics.LastLedgerEnd),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := fc.client.Heartbeat(ctx, heartbeat); err != nil {
		fc.logger.Warn("failed to send flowctl heartbeat", zap.Error(err))
		return
	}
	fc.logger.Debug("sent flowctl heartbeat", zap.String("service_id", fc.serviceID))
}

// Stop halts the heartbeat loop and closes the control plane connection.
func (fc *FlowctlController) Stop() {
	if fc.conn != nil {
		close(fc.stopHeartbeat)
		fc.conn.Close()
	}
}
