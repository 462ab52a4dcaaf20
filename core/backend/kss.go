package backend

import (
	"fmt"

	"github.com/relabs-tech/kadmin/core/backend/kss"
	"github.com/relabs-tech/kadmin/core/logger"
)

func (b *Backend) configureKSS(config *kss.Configuration) error {
	hasUploads := false
	for _, name := range b.order {
		if len(b.entities[name].controller.Configuration().UploadKeys()) > 0 {
			hasUploads = true
			break
		}
	}
	if !hasUploads {
		logger.Default().Info("KSS not in use")
		return nil
	}
	if config == nil {
		return fmt.Errorf("upload fields are configured, but kss configuration is missing")
	}
	logger.Default().Info("KSS in use with driver ", config.DriverType)

	var drv kss.Driver
	switch config.DriverType {
	case kss.DriverTypeLocal:
		if config.LocalConfiguration == nil {
			return fmt.Errorf("kss expecting a configuration for local KSS, but got nothing")
		}
		local, err := kss.NewLocalFilesystem(*config.LocalConfiguration)
		if err != nil {
			return fmt.Errorf("cannot create new Local KSS driver: %w", err)
		}
		local.HandleRoutes(b.router)
		drv = local
	case kss.DriverTypeAWSS3:
		if config.S3Configuration == nil {
			return fmt.Errorf("kss expecting a configuration for S3 KSS, but got nothing")
		}
		s3, err := kss.NewS3(*config.S3Configuration)
		if err != nil {
			return fmt.Errorf("cannot create new S3 KSS driver: %w", err)
		}
		drv = s3
	default:
		return fmt.Errorf("kss is used but unknown driver type: %s", config.DriverType)
	}
	b.uploader = kss.NewUploader(drv)
	return nil
}
