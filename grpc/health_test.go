package grpc_test

import (
	"context"
	"net"
	"time"

	harvestgrpc "discord-harvester/grpc"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var _ = Describe("health service", func() {
	var (
		srv    *harvestgrpc.HealthServer
		client *harvestgrpc.Client
		cancel context.CancelFunc
		done   chan error
	)

	BeforeEach(func() {
		var err error
		srv, err = harvestgrpc.Listen("127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()

		client, err = harvestgrpc.NewClient(srv.Addr(), 2*time.Second)
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			Expect(client.Close()).To(Succeed())
			cancel()
			Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
		})
	})

	It("starts not serving", func() {
		status, err := client.Check(context.Background(), harvestgrpc.ServiceName)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_NOT_SERVING))
	})

	It("follows SetServing for the daemon and the whole server", func() {
		srv.SetServing(true)
		status, err := client.Check(context.Background(), harvestgrpc.ServiceName)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_SERVING))

		status, err = client.Check(context.Background(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_SERVING))

		srv.SetServing(false)
		status, err = client.Check(context.Background(), harvestgrpc.ServiceName)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_NOT_SERVING))
	})

	It("reports unknown services as errors", func() {
		status, err := client.Check(context.Background(), "other.Service")
		Expect(err).To(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_UNKNOWN))
	})
})

var _ = Describe("HealthServer.Close", func() {
	It("releases the port when Serve never ran", func() {
		srv, err := harvestgrpc.Listen("127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := srv.Addr()

		srv.Close()

		lis, err := net.Listen("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(lis.Close()).To(Succeed())
	})

	It("is safe after Serve returned", func() {
		srv, err := harvestgrpc.Listen("127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()
		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))

		Expect(srv.Close).NotTo(Panic())
	})
})
