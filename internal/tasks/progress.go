package tasks

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	doneAnchorDescriptionConstant       = "user tasks done"
	defaultAnchorDescriptionConstant    = "done"
	progressSuffixTemplateConstant      = "...%.2f%% [%d/%d]"
	progressFailureLineTemplateConstant = "Error while processing %s: %v\n"
	progressEllipsisConstant            = "..."
	progressReservedColumnsConstant     = 11
	defaultConsoleWidthConstant         = 80

	taskCompletedLogMessageConstant = "task_completed"
	taskFailedLogMessageConstant    = "task_failed"
	taskFieldNameConstant           = "task"
	elapsedFieldNameConstant        = "elapsed"
	completedFieldNameConstant      = "completed"
	totalFieldNameConstant          = "total"
	percentageFieldNameConstant     = "percentage"
)

// ProgressEvent describes one finished task of a run.
type ProgressEvent struct {
	Identifier string
	Elapsed    time.Duration
	Completed  int
	Total      int
	Percentage float64
}

// Description returns the human label for the event identifier.
func (event ProgressEvent) Description() string {
	return DescribeTask(event.Identifier)
}

// DescribeTask maps the reserved anchors to their human labels.
func DescribeTask(identifier string) string {
	switch identifier {
	case DoneTaskIdentifier:
		return doneAnchorDescriptionConstant
	case DefaultTaskIdentifier:
		return defaultAnchorDescriptionConstant
	default:
		return identifier
	}
}

// ProgressPercentage computes (1 - remaining/total) * 100.
func ProgressPercentage(remaining int, total int) float64 {
	if total <= 0 {
		return 100
	}
	return (1.0 - float64(remaining)/float64(total)) * 100
}

// ProgressSink receives run progress.
type ProgressSink interface {
	TaskCompleted(event ProgressEvent)
	TaskFailed(event ProgressEvent, failure error)
}

// ConsoleProgressSink writes one padded line per completed task.
type ConsoleProgressSink struct {
	mutex  sync.Mutex
	writer io.Writer
	width  int
}

// NewConsoleProgressSink constructs a sink writing to writer. A non-positive width uses 80 columns.
func NewConsoleProgressSink(writer io.Writer, width int) *ConsoleProgressSink {
	if width <= 0 {
		width = defaultConsoleWidthConstant
	}
	return &ConsoleProgressSink{writer: writer, width: width}
}

// FormatProgressLine renders the human progress line without a trailing newline.
func FormatProgressLine(event ProgressEvent, width int) string {
	progress := fmt.Sprintf(progressSuffixTemplateConstant, event.Percentage, event.Completed, event.Total)
	label := event.Description() + progressEllipsisConstant
	padding := width - progressReservedColumnsConstant - len(progress) - len(label)
	if padding < 1 {
		padding = 1
	}
	return label + strings.Repeat(" ", padding) + progress
}

// TaskCompleted implements ProgressSink.
func (sink *ConsoleProgressSink) TaskCompleted(event ProgressEvent) {
	if sink == nil || sink.writer == nil {
		return
	}
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	fmt.Fprintln(sink.writer, FormatProgressLine(event, sink.width))
}

// TaskFailed implements ProgressSink.
func (sink *ConsoleProgressSink) TaskFailed(event ProgressEvent, failure error) {
	if sink == nil || sink.writer == nil {
		return
	}
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	fmt.Fprintf(sink.writer, progressFailureLineTemplateConstant, event.Identifier, failure)
}

// LoggerProgressSink reports progress as structured log entries.
type LoggerProgressSink struct {
	logger *zap.Logger
}

// NewLoggerProgressSink constructs a sink over logger.
func NewLoggerProgressSink(logger *zap.Logger) LoggerProgressSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LoggerProgressSink{logger: logger}
}

// TaskCompleted implements ProgressSink.
func (sink LoggerProgressSink) TaskCompleted(event ProgressEvent) {
	sink.logger.Info(taskCompletedLogMessageConstant, progressFields(event)...)
}

// TaskFailed implements ProgressSink.
func (sink LoggerProgressSink) TaskFailed(event ProgressEvent, failure error) {
	sink.logger.Error(taskFailedLogMessageConstant, append(progressFields(event), zap.Error(failure))...)
}

func progressFields(event ProgressEvent) []zap.Field {
	return []zap.Field{
		zap.String(taskFieldNameConstant, event.Identifier),
		zap.Duration(elapsedFieldNameConstant, event.Elapsed),
		zap.Int(completedFieldNameConstant, event.Completed),
		zap.Int(totalFieldNameConstant, event.Total),
		zap.Float64(percentageFieldNameConstant, event.Percentage),
	}
}

// MultiProgressSink fans events out to several sinks in order.
type MultiProgressSink []ProgressSink

// TaskCompleted implements ProgressSink.
func (sinks MultiProgressSink) TaskCompleted(event ProgressEvent) {
	for _, sink := range sinks {
		if sink != nil {
			sink.TaskCompleted(event)
		}
	}
}

// TaskFailed implements ProgressSink.
func (sinks MultiProgressSink) TaskFailed(event ProgressEvent, failure error) {
	for _, sink := range sinks {
		if sink != nil {
			sink.TaskFailed(event, failure)
		}
	}
}
