package main

import (
	"fmt"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/handler"
)

// fsStore set when the disk backend is used, nil for minio
var fsStore *chunkstore.FSStore

func setupStore() (chunkstore.ChunkStore, handler.DiskCapacity, error) {
	fmt.Print("> setup store")

	sc := config.Configuration.Storage
	switch sc.Backend {
	case config.StorageMinio:
		mc := config.Configuration.Minio
		ms, err := chunkstore.SetupMinioStore(chunkstore.MinioOptions{
			StorageURL: mc.StorageURL,
			AccessID:   mc.AccessID,
			SecretKey:  mc.SecretKey,
			Bucket:     mc.Bucket,
			Region:     mc.Region,
			UseSSL:     mc.UseSSL,
			TempPrefix: sc.TempDir,
		})
		if err != nil {
			return nil, nil, err
		}
		fmt.Print("	+ minio	[OK]\n")
		return ms, nil, nil
	default:
		fs, err := chunkstore.SetupFSStore(sc.BaseDir, sc.TempDir)
		if err != nil {
			return nil, nil, err
		}
		if err := fs.CalculateCurrentDiskCapacity(); err != nil {
			return nil, nil, err
		}
		fsStore = fs
		fmt.Print("	+ disk		[OK]\n")
		return fs, fs, nil
	}
}
