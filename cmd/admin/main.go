/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command admin is an operator CLI over internal/admin.Service, replacing
// the teacher's cmd/withdrawal single-purpose binary with one subcommand
// per liquidity/webhook operation (spec.md §4.6).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilpengine/engine/internal/admin"
	"github.com/ilpengine/engine/internal/common"
	"github.com/ilpengine/engine/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func usage() {
	fmt.Println("Usage: admin <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  deposit-asset     --asset ID --amount AMOUNT")
	fmt.Println("  deposit-peer      --peer ID --amount AMOUNT")
	fmt.Println("  withdraw-asset    --asset ID --amount AMOUNT [--timeout SECONDS]")
	fmt.Println("  withdraw-peer     --peer ID --amount AMOUNT [--timeout SECONDS]")
	fmt.Println("  withdraw-wallet   --wallet ID --amount AMOUNT [--timeout SECONDS]")
	fmt.Println("  post-withdrawal   --withdrawal ID")
	fmt.Println("  void-withdrawal   --withdrawal ID")
	fmt.Println("  deposit-event     --event ID")
	fmt.Println("  withdraw-event    --event ID")
	fmt.Println("  inspect-peer      --peer ID")
}

func printResponse(title string, resp *admin.Response) {
	common.PrintHeader(title, common.DefaultWidth)
	if resp.Success {
		fmt.Println("Result: OK")
		if resp.Data != nil {
			if encoded, err := json.MarshalIndent(resp.Data, "", "  "); err == nil {
				fmt.Println(string(encoded))
			}
		}
	} else {
		fmt.Printf("Result: FAILED (%s)\n", resp.Error)
		fmt.Printf("Message: %s\n", resp.Message)
	}
	common.PrintFooter(fmt.Sprintf("code=%s", resp.Code), common.DefaultWidth)
	if !resp.Success {
		os.Exit(1)
	}
}

func idempotencyKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return uuid.NewString()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	assetID := fs.String("asset", "", "Asset ID")
	peerID := fs.String("peer", "", "Peer ID")
	walletID := fs.String("wallet", "", "Wallet address ID")
	withdrawalID := fs.String("withdrawal", "", "Withdrawal ID")
	eventID := fs.String("event", "", "Webhook event ID")
	amount := fs.String("amount", "", "Amount (decimal string)")
	timeoutSeconds := fs.Int("timeout", 0, "Withdrawal timeout in seconds (0 = no timeout)")
	key := fs.String("idempotency-key", "", "Idempotency key (random if omitted)")
	_ = fs.Parse(os.Args[2:])

	timeout := time.Duration(*timeoutSeconds) * time.Second

	switch cmd {
	case "deposit-asset":
		printResponse("DEPOSIT ASSET LIQUIDITY", services.Admin.AddAssetLiquidity(ctx, *assetID, *amount, idempotencyKey(*key)))
	case "deposit-peer":
		printResponse("DEPOSIT PEER LIQUIDITY", services.Admin.AddPeerLiquidity(ctx, *peerID, *amount, idempotencyKey(*key)))
	case "withdraw-asset":
		printResponse("WITHDRAW ASSET LIQUIDITY", services.Admin.CreateAssetLiquidityWithdrawal(ctx, *assetID, *amount, timeout, idempotencyKey(*key)))
	case "withdraw-peer":
		printResponse("WITHDRAW PEER LIQUIDITY", services.Admin.CreatePeerLiquidityWithdrawal(ctx, *peerID, *amount, timeout, idempotencyKey(*key)))
	case "withdraw-wallet":
		printResponse("WITHDRAW WALLET ADDRESS LIQUIDITY", services.Admin.CreateWalletAddressWithdrawal(ctx, *walletID, *amount, timeout, idempotencyKey(*key)))
	case "post-withdrawal":
		printResponse("POST WITHDRAWAL", services.Admin.PostLiquidityWithdrawal(ctx, *withdrawalID))
	case "void-withdrawal":
		printResponse("VOID WITHDRAWAL", services.Admin.VoidLiquidityWithdrawal(ctx, *withdrawalID))
	case "deposit-event":
		printResponse("DEPOSIT EVENT LIQUIDITY", services.Admin.DepositEventLiquidity(ctx, *eventID, idempotencyKey(*key)))
	case "withdraw-event":
		printResponse("WITHDRAW EVENT LIQUIDITY", services.Admin.WithdrawEventLiquidity(ctx, *eventID, idempotencyKey(*key)))
	case "inspect-peer":
		info, err := common.InspectPeer(ctx, services.Domain, *peerID, zap.L())
		if err != nil {
			common.PrintHeader("INSPECT PEER", common.DefaultWidth)
			fmt.Printf("Error: %v\n", err)
			common.PrintFooter("code=404", common.DefaultWidth)
			os.Exit(1)
		}
		common.PrintHeader("INSPECT PEER", common.DefaultWidth)
		fmt.Printf("ID:          %s\n", info.ID)
		fmt.Printf("Asset:       %s\n", info.AssetCode)
		fmt.Printf("ILP Address: %s\n", info.StaticIlpAddress)
		common.PrintFooter("code=200", common.DefaultWidth)
	default:
		usage()
		os.Exit(1)
	}
}
