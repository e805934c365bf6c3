// runner-send publishes a sample job to the inbound stream. It is a
// development tool for exercising a running runner-service end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/model"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "configs/runner_service.yaml"

type senderConfig struct {
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		ClientID string   `yaml:"clientID"`
	} `yaml:"kafka"`
	Streams struct {
		Inbound string `yaml:"inbound"`
	} `yaml:"streams"`
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	jobName := flag.String("job", "gcc-version", "Sample job: gcc-version or cpp-add")
	submitID := flag.String("submit-id", "dev-submit-1", "Submission identifier")
	flag.Parse()

	cfg, err := loadSenderConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	job, err := sampleJob(*jobName, *submitID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	body, err := job.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode job failed: %v\n", err)
		os.Exit(1)
	}

	queue, err := mq.NewKafkaQueue(mq.KafkaConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init kafka failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = queue.Close()
	}()

	topic := cfg.Streams.Inbound
	if topic == "" {
		topic = "runner.jobs"
	}

	message := mq.NewMessage(body)
	message.ID = job.SubmitID

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Publish(ctx, topic, message); err != nil {
		fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sent job to stream: %s\n%s", topic, string(body))
}

func loadSenderConfig(path string) (*senderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg senderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	return &cfg, nil
}

func sampleJob(name, submitID string) (model.Job, error) {
	budget := model.Budget{
		TimeLimit:      1,
		TimeReserved:   1,
		MemoryLimit:    256000,
		MemoryReserved: 4096000,
	}
	switch name {
	case "gcc-version":
		return model.Job{
			Commands: []model.Command{{
				Command: "gcc",
				Args:    []string{"--version"},
				Budget:  budget,
			}},
			Profile:  "gcc14",
			SubmitID: submitID,
		}, nil
	case "cpp-add":
		source := `echo '#include <iostream>
using namespace std;
int main() {
    int a, b;
    cin >> a >> b;
    cout << a << " + " << b << " = " << a + b << endl;
}' > main.cpp`
		return model.Job{
			Commands: []model.Command{
				{Command: "sh", Args: []string{"-c", source}, Budget: budget},
				{Command: "g++", Args: []string{"main.cpp", "-o", "main"}, Budget: budget},
				{Command: "./main", Input: "1 2", Budget: budget},
			},
			Profile:  "gcc14",
			SubmitID: submitID,
		}, nil
	default:
		return model.Job{}, fmt.Errorf("unknown sample job %q (want gcc-version or cpp-add)", name)
	}
}
