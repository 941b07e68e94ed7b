package agent

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/config"
)

const ServiceName = "visarisk"

// ServiceProgram implements the service.Interface
type ServiceProgram struct {
	config *config.Config
	agent  *Agent
}

func (p *ServiceProgram) Start(s service.Service) error {
	logrus.Infoln("Visarisk agent service starting")

	agent, err := StartWebService(p.config)
	if err != nil {
		return fmt.Errorf("failed to start web service: %w", err)
	}
	p.agent = agent

	logrus.Infoln("Visarisk agent service is running")
	return nil
}

func (p *ServiceProgram) Stop(s service.Service) error {
	logrus.Infoln("Visarisk agent service stopping")
	if p.agent != nil {
		p.agent.Stop()
	}
	return nil
}

// CreateService wraps the agent for the service manager of the host OS.
func CreateService(cfg *config.Config) (service.Service, error) {
	svcConfig, err := getServiceConfig(cfg)
	if err != nil {
		return nil, err
	}

	return service.New(&ServiceProgram{config: cfg}, svcConfig)
}

func getServiceConfig(cfg *config.Config) (*service.Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}

	arguments := []string{"serve"}
	if file := cfg.ConfigFile(); len(file) > 0 {
		arguments = append(arguments, "--config", file)
	}

	return &service.Config{
		Name:        ServiceName,
		DisplayName: "Visarisk Agent",
		Description: "Visarisk Agent - keeps your Visarisk session and serves the local dashboard",
		Executable:  exePath,
		Arguments:   arguments,
		Option: service.KeyValue{
			"UserService": true,
		},
	}, nil
}
