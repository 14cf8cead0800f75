package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/api/clients"
	"github.com/nextdotid/sdk-go/cmd/flags"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/nextdotid/sdk-go/proofservice"
	"github.com/urfave/cli/v2"
)

var flagWalletSecretKey = &cli.StringFlag{
	Name:    "wallet-secret-key",
	Usage:   "hex-encoded ethereum wallet secret key, used when binding an ethereum account",
	EnvVars: []string{"NEXTID_WALLET_SECRET_KEY"},
}

var flagPage = &cli.IntFlag{
	Name:  "page",
	Value: 1,
	Usage: "query result page, starting at 1",
}

const usage string = "Manage the proof chain of a NextID avatar"

func main() {
	app := &cli.App{
		Name:  "proof-client",
		Usage: usage,
		Flags: []cli.Flag{
			flags.ProofServiceAddrFlag,
			flags.PlatformFlag,
			flags.IdentityFlag,
		},
		Commands: []*cli.Command{
			{
				Name:        "bind",
				Usage:       "Bind a platform identity to the avatar",
				Description: "Requests a challenge, signs it, walks through publishing the proof post and submits the binding.",
				Flags: []cli.Flag{
					flags.SecretKeyFlag,
					flagWalletSecretKey,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.Modify(cCtx.Context, interfaces.ActionCreate)
				},
			},
			{
				Name:  "revoke",
				Usage: "Revoke an existing binding",
				Flags: []cli.Flag{
					flags.SecretKeyFlag,
					flagWalletSecretKey,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.Modify(cCtx.Context, interfaces.ActionDelete)
				},
			},
			{
				Name:  "query",
				Usage: "List avatars bound to a platform identity",
				Flags: []cli.Flag{
					flagPage,
				},
				Action: func(cCtx *cli.Context) error {
					c, err := NewClientConfig(cCtx)
					if err != nil {
						return err
					}
					return c.Query(cCtx.Context, cCtx.Int(flagPage.Name))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type Client struct {
	Platform interfaces.Platform
	Identity string
	Avatar   *cryptoutils.Secp256k1KeyPair
	Wallet   *cryptoutils.Secp256k1KeyPair
	Provider api.ProofGateway
}

func NewClientConfig(cCtx *cli.Context) (*Client, error) {
	platform := interfaces.Platform(cCtx.String(flags.PlatformFlag.Name))
	if err := platform.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		Platform: platform,
		Identity: cCtx.String(flags.IdentityFlag.Name),
		Provider: &clients.ProofServiceClient{ServerAddr: cCtx.String(flags.ProofServiceAddrFlag.Name)},
	}

	if secHex := cCtx.String(flags.SecretKeyFlag.Name); secHex != "" {
		avatar, err := cryptoutils.NewKeyPairFromSecretHex(secHex)
		if err != nil {
			return nil, fmt.Errorf("could not parse avatar secret key: %w", err)
		}
		client.Avatar = avatar
	}
	if walletHex := cCtx.String(flagWalletSecretKey.Name); walletHex != "" {
		wallet, err := cryptoutils.NewKeyPairFromSecretHex(walletHex)
		if err != nil {
			return nil, fmt.Errorf("could not parse wallet secret key: %w", err)
		}
		client.Wallet = wallet
	}
	return client, nil
}

func (c *Client) Modify(ctx context.Context, action interfaces.Action) error {
	if c.Avatar == nil {
		return fmt.Errorf("avatar-secret-key is required to modify the proof chain")
	}

	procedure, err := proofservice.NewProcedure(c.Provider, action, c.Platform, c.Identity, c.Avatar)
	if err != nil {
		return err
	}
	if err := procedure.RequestChallenge(ctx); err != nil {
		return fmt.Errorf("could not obtain challenge: %w", err)
	}

	challenge, _ := procedure.Challenge()
	avatarSig, err := c.Avatar.PersonalSign(challenge)
	if err != nil {
		return fmt.Errorf("could not sign challenge: %w", err)
	}

	var walletSig cryptoutils.Signature
	if c.Platform == interfaces.PlatformEthereum {
		if c.Wallet == nil && action == interfaces.ActionCreate {
			return fmt.Errorf("wallet-secret-key is required to bind an ethereum account")
		}
		if c.Wallet != nil {
			walletSig, err = c.Wallet.PersonalSign(challenge)
			if err != nil {
				return fmt.Errorf("could not sign challenge with wallet key: %w", err)
			}
		}
	}

	proofLocation, err := c.collectProofLocation(procedure, avatarSig)
	if err != nil {
		return err
	}

	if err := procedure.Submit(ctx, proofLocation, avatarSig, walletSig); err != nil {
		return fmt.Errorf("could not submit proof: %w", err)
	}

	uuid, _ := procedure.UUID()
	fmt.Printf("Registry accepted the %s, uuid %s\n", action, uuid)
	return nil
}

// collectProofLocation prints the post content with the signature filled in
// and asks for the published post's location. Platforms without a public
// post (ethereum, solana) skip the prompt.
func (c *Client) collectProofLocation(procedure *proofservice.Procedure, avatarSig cryptoutils.Signature) (string, error) {
	content, err := procedure.PostContent()
	if err != nil || len(content) == 0 {
		return "", err
	}
	if c.Platform == interfaces.PlatformEthereum || c.Platform == interfaces.PlatformSolana {
		return "", nil
	}

	fmt.Printf("Publish the following on %s:\n\n", c.Platform)
	for name, body := range content {
		fmt.Printf("[%s]\n%s\n\n", name, strings.ReplaceAll(body, "%SIG_BASE64%", avatarSig.Base64()))
	}

	fmt.Print("Enter the proof location (post URL or id): ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", fmt.Errorf("could not read proof location: %w", scanner.Err())
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func (c *Client) Query(ctx context.Context, page int) error {
	result, err := proofservice.FindBy(ctx, c.Provider, c.Platform, c.Identity, page)
	if err != nil {
		return err
	}

	for _, avatar := range result.Avatars {
		fmt.Printf("avatar %s\n", avatar.KeyPair.CompressedHex())
		for _, proof := range avatar.Proofs {
			status := "valid"
			if !proof.IsValid {
				status = fmt.Sprintf("invalid (%s)", proof.InvalidReason)
			}
			fmt.Printf("  %s/%s bound %s, %s\n", proof.Platform, proof.Identity, proof.CreatedAt.Format("2006-01-02"), status)
		}
	}

	encoded, err := json.MarshalIndent(result.Pagination, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("pagination: %s\n", encoded)
	return nil
}
