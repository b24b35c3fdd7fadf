package frameflow

import (
	controlpkg "github.com/frameflow/frameflow/control"
	endpointpkg "github.com/frameflow/frameflow/endpoint"
	framepkg "github.com/frameflow/frameflow/frame"
	hookspkg "github.com/frameflow/frameflow/hooks"
	configpkg "github.com/frameflow/frameflow/internal/config"
	idspkg "github.com/frameflow/frameflow/internal/ids"
	loggingpkg "github.com/frameflow/frameflow/internal/logging"
	relaypkg "github.com/frameflow/frameflow/internal/relay"
	workerpkg "github.com/frameflow/frameflow/worker"
)

type (
	Config = configpkg.Config

	Frame   = framepkg.Frame
	Message = framepkg.Message

	Endpoint         = endpointpkg.Endpoint
	EndpointConfig   = endpointpkg.Config
	EndpointRegistry = endpointpkg.Registry
	Router           = endpointpkg.Router
	Dealer           = endpointpkg.Dealer

	Proxy             = relaypkg.Proxy
	ProxyParams       = relaypkg.Params
	Hook              = relaypkg.Hook
	Direction         = relaypkg.Direction
	State             = relaypkg.State
	Stats             = relaypkg.Stats
	StatsSnapshot     = relaypkg.StatsSnapshot
	DirectionCounters = relaypkg.DirectionCounters
	HookError         = relaypkg.HookError
	EndpointError     = relaypkg.EndpointError

	Command          = controlpkg.Command
	ControlBus       = controlpkg.Bus
	ControlPublisher = controlpkg.Publisher
	BusConfig        = controlpkg.BusConfig
	BusBuilder       = controlpkg.Builder
	BusRegistry      = controlpkg.Registry

	// Hook building blocks
	HookFunc           = hookspkg.Func
	HookDirectionFuncs = hookspkg.DirectionFuncs
	HookChain          = hookspkg.Chain
	HookSkipFunc       = hookspkg.SkipFunc
	CaseMapHook        = hookspkg.CaseMap
	MetricsHook        = hookspkg.Metrics
	TracingHook        = hookspkg.Tracing

	// Worker pool
	WorkerPool    = workerpkg.Pool
	WorkerConfig  = workerpkg.Config
	WorkerHandler = workerpkg.Handler

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
)

var (
	NewMessage       = framepkg.NewMessage
	ValidateIdentity = framepkg.ValidateIdentity

	NewRouter               = endpointpkg.NewRouter
	NewDealer               = endpointpkg.NewDealer
	NewEndpointRegistry     = endpointpkg.NewRegistry
	DefaultEndpointRegistry = endpointpkg.DefaultRegistry

	NewProxy = relaypkg.New
	NewStats = relaypkg.NewStats

	NewControlPublisher = controlpkg.NewPublisher
	ListenControl       = controlpkg.Listen
	ParseCommand        = controlpkg.Parse
	RegisterControlBus  = controlpkg.Register
	BuildControlBus     = controlpkg.Build
	DefaultBusRegistry  = controlpkg.DefaultRegistry

	// Hook constructors
	NopHook        = hookspkg.Nop
	NewCaseMapHook = hookspkg.NewCaseMap
	NewMetricsHook = hookspkg.NewMetrics
	NewTracingHook = hookspkg.NewTracing
	SkipEnvelope   = hookspkg.SkipEnvelope

	NewWorkerPool = workerpkg.NewPool

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopServiceLogger          = loggingpkg.Nop

	NewULID     = idspkg.NewULID
	NewIdentity = idspkg.NewIdentity

	ErrWouldBlock      = endpointpkg.ErrWouldBlock
	ErrClosed          = endpointpkg.ErrClosed
	ErrInvalidAddress  = endpointpkg.ErrInvalidAddress
	ErrAddressInUse    = endpointpkg.ErrAddressInUse
	ErrUnknownAddress  = endpointpkg.ErrUnknownAddress
	ErrInvalidIdentity = framepkg.ErrInvalidIdentity
	ErrTerminating     = relaypkg.ErrTerminating
)

// Steering commands.
const (
	Pause      = controlpkg.Pause
	Resume     = controlpkg.Resume
	Terminate  = controlpkg.Terminate
	Stop       = controlpkg.Stop
	Statistics = controlpkg.Statistics
)

// Relay directions, as seen by hooks.
const (
	FrontendToBackend = relaypkg.FrontendToBackend
	BackendToFrontend = relaypkg.BackendToFrontend
)

// Relay run states.
const (
	StateRunning    = relaypkg.StateRunning
	StatePaused     = relaypkg.StatePaused
	StateTerminated = relaypkg.StateTerminated
)

const (
	// ReservedIdentityPrefix is the leading byte reserved for
	// library-generated identities; explicit identities must not start
	// with it.
	ReservedIdentityPrefix = framepkg.ReservedIdentityPrefix

	// MaxIdentitySize bounds explicit identity frames.
	MaxIdentitySize = framepkg.MaxIdentitySize

	// DefaultHWM is the per-pipe high-water mark used when a config leaves
	// one unset.
	DefaultHWM = endpointpkg.DefaultHWM

	DefaultPollInterval = configpkg.DefaultPollInterval
	DefaultControlTopic = configpkg.DefaultControlTopic

	// StatsTopicSuffix is appended to the control topic to form the
	// statistics reply topic.
	StatsTopicSuffix = controlpkg.StatsTopicSuffix
)
