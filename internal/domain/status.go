package domain

import "time"

// ServiceID — идентичность сервиса для запросов к коллабораторам масштабирования.
type ServiceID struct {
	Cluster string `json:"cluster" yaml:"cluster"`
	Service string `json:"service" yaml:"service"`
}

func (id ServiceID) String() string {
	return id.Cluster + "/" + id.Service
}

// ScaleState — ответ коллаборатора масштабирования.
type ScaleState struct {
	RunningTasks int `json:"running_tasks"`
	DesiredTasks int `json:"desired_tasks"`
}

// Поля ServiceStatus, которые могут деградировать независимо друг от друга.
const (
	FieldHealth          = "health"
	FieldScaling         = "scaling"
	FieldCPU             = "cpu_util"
	FieldMemory          = "mem_util"
	FieldRequestCount    = "request_count_window"
	FieldAvgResponseTime = "avg_response_time_window"
)

// ServiceStatus собирается заново при каждом вызове отчета, ничего не хранит.
// nil-поле означает "unavailable", причина лежит в Unavailable.
type ServiceStatus struct {
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
	Target    string        `json:"target" yaml:"target"`
	Service   ServiceID     `json:"service" yaml:"service"`
	Window    time.Duration `json:"window" yaml:"window"`

	Healthy      bool   `json:"healthy" yaml:"healthy"`
	HealthDetail string `json:"health_detail,omitempty" yaml:"health_detail,omitempty"`

	RunningTasks          *int     `json:"running_tasks" yaml:"running_tasks"`
	DesiredTasks          *int     `json:"desired_tasks" yaml:"desired_tasks"`
	CPUUtil               *float64 `json:"cpu_util" yaml:"cpu_util"`
	MemUtil               *float64 `json:"mem_util" yaml:"mem_util"`
	RequestCountWindow    *int64   `json:"request_count_window" yaml:"request_count_window"`
	AvgResponseTimeWindow *float64 `json:"avg_response_time_window" yaml:"avg_response_time_window"` // секунды

	Unavailable map[string]string `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// MarkUnavailable фиксирует причину, по которой поле не заполнено.
func (s *ServiceStatus) MarkUnavailable(field string, err error) {
	if s.Unavailable == nil {
		s.Unavailable = make(map[string]string)
	}
	s.Unavailable[field] = err.Error()
}

// Section — часть отчета о состоянии. Узкие режимы собирают и печатают только свои секции.
type Section uint8

const (
	SectionLiveness Section = 1 << iota
	SectionScaling
	SectionResources
	SectionTraffic

	SectionsMetrics = SectionScaling | SectionResources | SectionTraffic
	SectionsAll     = SectionLiveness | SectionsMetrics
)

func (s Section) Has(part Section) bool {
	return s&part != 0
}
